package catalog

import "testing"

func TestID(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, kind := range []Kind{KindArtist, KindAlbum, KindTrack, KindPlaylist, KindAudio, KindImage, KindUser, KindLyrics, KindScrobble} {
			id := MakeID(kind, 12345)
			if id.Kind() != kind {
				t.Errorf("expected kind %s, got %s", kind, id.Kind())
			}
			if id.Num() != 12345 {
				t.Errorf("expected num 12345, got %d", id.Num())
			}

			parsed, err := ParseID(id.String())
			if err != nil {
				t.Fatalf("failed to parse %q: %v", id.String(), err)
			}
			if parsed != id {
				t.Errorf("expected %v, got %v", id, parsed)
			}
		}
	})

	t.Run("TextualForm", func(t *testing.T) {
		id := MakeID(KindArtist, 1)
		if id.String() != "sonar:artist:1000001" {
			t.Errorf("expected sonar:artist:1000001, got %s", id.String())
		}
	})

	t.Run("ParseRejectsInvalid", func(t *testing.T) {
		cases := []string{
			"",
			"artist:1000001",
			"sonar:artist",
			"sonar:widget:1000001",
			"sonar:artist:zzzz",
			"sonar:artist:fffffffff", // over 32 bits
			"sonar:album:1000001",    // kind mismatch with encoded kind
		}
		for _, s := range cases {
			if _, err := ParseID(s); err == nil {
				t.Errorf("expected error parsing %q", s)
			}
		}
	})

	t.Run("ParseKindChecked", func(t *testing.T) {
		id := MakeID(KindTrack, 7)
		track, err := ParseTrackID(id.String())
		if err != nil {
			t.Fatalf("failed to parse track id: %v", err)
		}
		if track.ID() != id {
			t.Errorf("expected %v, got %v", id, track.ID())
		}
		if _, err := ParseArtistID(id.String()); err == nil {
			t.Error("expected kind mismatch error")
		}
	})

	t.Run("SequenceMasked", func(t *testing.T) {
		// sequences are 24-bit; the kind byte must survive overflow
		id := MakeID(KindArtist, 0xFFFFFFFF)
		if id.Kind() != KindArtist {
			t.Errorf("expected artist kind, got %s", id.Kind())
		}
		if id.Num() != 0x00FFFFFF {
			t.Errorf("expected masked num, got %x", id.Num())
		}
	})
}

func TestValueUpdate(t *testing.T) {
	t.Run("ZeroIsUnchanged", func(t *testing.T) {
		var u ValueUpdate[string]
		if !u.IsUnchanged() || u.IsUnset() {
			t.Error("zero value should be unchanged")
		}
		if _, ok := u.Get(); ok {
			t.Error("unchanged should not report a value")
		}
	})

	t.Run("Set", func(t *testing.T) {
		u := Set("value")
		if v, ok := u.Get(); !ok || v != "value" {
			t.Errorf("expected set value, got %q %v", v, ok)
		}
		if u.IsUnchanged() || u.IsUnset() {
			t.Error("set should be neither unchanged nor unset")
		}
	})

	t.Run("Unset", func(t *testing.T) {
		u := Unset[string]()
		if !u.IsUnset() || u.IsUnchanged() {
			t.Error("unset should report unset")
		}
		if _, ok := u.Get(); ok {
			t.Error("unset should not report a value")
		}
	})
}
