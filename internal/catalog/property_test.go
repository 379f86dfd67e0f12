package catalog

import "testing"

func TestPropertyKey(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []string{"a", "external/spotify", "musicbrainz.id", "some_key-1"} {
			if _, err := ParsePropertyKey(s); err != nil {
				t.Errorf("expected %q to be valid: %v", s, err)
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		long := make([]byte, propertyKeyMaxLength+1)
		for i := range long {
			long[i] = 'a'
		}
		for _, s := range []string{"", "UPPER", "with space", "emojié", string(long)} {
			if _, err := ParsePropertyKey(s); err == nil {
				t.Errorf("expected %q to be invalid", s)
			}
		}
	})
}

func TestPropertyValue(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		if _, err := ParsePropertyValue("Spotify URI: spotify:track:123 (primary)"); err != nil {
			t.Errorf("expected printable ascii to be valid: %v", err)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		long := make([]byte, propertyValueMaxLength+1)
		for i := range long {
			long[i] = 'a'
		}
		for _, s := range []string{"tab\there", "café", string(long)} {
			if _, err := ParsePropertyValue(s); err == nil {
				t.Errorf("expected %q to be invalid", s)
			}
		}
	})
}

func TestProperties(t *testing.T) {
	t.Run("MergePrimaryWins", func(t *testing.T) {
		primary := Properties{"a": "1", "b": "2"}
		secondary := Properties{"b": "other", "c": "3"}

		merged := MergeProperties(primary, secondary)
		if merged["a"] != "1" || merged["b"] != "2" || merged["c"] != "3" {
			t.Errorf("unexpected merge result: %v", merged)
		}
	})

	t.Run("UpdatesForDiff", func(t *testing.T) {
		current := Properties{"keep": "1", "change": "old", "drop": "x"}
		wanted := Properties{"keep": "1", "change": "new", "add": "y"}

		result := current.Clone()
		result.ApplyUpdates(PropertyUpdatesFor(current, wanted))
		if len(result) != len(wanted) {
			t.Fatalf("expected %d entries, got %d", len(wanted), len(result))
		}
		for k, v := range wanted {
			if result[k] != v {
				t.Errorf("expected %s=%s, got %s", k, v, result[k])
			}
		}
	})

	t.Run("SerializeRoundTrip", func(t *testing.T) {
		props := Properties{"external/spotify": "spotify:track:1"}
		data, err := props.Serialize()
		if err != nil {
			t.Fatalf("failed to serialize: %v", err)
		}
		got, err := DeserializeProperties(data)
		if err != nil {
			t.Fatalf("failed to deserialize: %v", err)
		}
		if got["external/spotify"] != "spotify:track:1" {
			t.Errorf("unexpected round trip result: %v", got)
		}
	})
}

func TestGenre(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []string{"rock", "heavy metal", "2 step"} {
			if _, err := ParseGenre(s); err != nil {
				t.Errorf("expected %q to be valid: %v", s, err)
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, s := range []string{"", "Rock", "synth-pop", "a genre name that is way too long"} {
			if _, err := ParseGenre(s); err == nil {
				t.Errorf("expected %q to be invalid", s)
			}
		}
	})

	t.Run("Canonicalize", func(t *testing.T) {
		cases := map[string]Genre{
			"Rock":           "rock",
			"Synth-Pop":      "synth pop",
			" Heavy  Metal ": "heavy  metal",
		}
		for input, want := range cases {
			got, err := CanonicalizeGenre(input)
			if err != nil {
				t.Errorf("failed to canonicalize %q: %v", input, err)
				continue
			}
			if got != want {
				t.Errorf("expected %q -> %q, got %q", input, want, got)
			}
		}
	})

	t.Run("SetSemantics", func(t *testing.T) {
		var gs Genres
		gs = gs.Insert("rock").Insert("metal").Insert("rock")
		if len(gs) != 2 {
			t.Errorf("expected deduplicated set, got %v", gs)
		}
		gs = gs.ApplyUpdates([]GenreUpdate{GenreRemove("rock"), GenreSet("jazz")})
		if gs.Contains("rock") || !gs.Contains("jazz") || !gs.Contains("metal") {
			t.Errorf("unexpected set after updates: %v", gs)
		}
	})
}
