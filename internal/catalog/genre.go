package catalog

import (
	"strings"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

const genreMaxLength = 24

// Genre is an ascii string of at most 24 bytes drawn from `a-z`, `0-9` and
// space.
type Genre string

// ParseGenre validates s as a genre.
func ParseGenre(s string) (Genre, error) {
	if len(s) == 0 {
		return "", shared.Invalidf("genre is empty")
	}
	if len(s) > genreMaxLength {
		return "", shared.Invalidf("genre %q is too long", s)
	}
	for i := 0; i < len(s); i++ {
		if !isGenreChar(s[i]) {
			return "", shared.Invalidf("genre %q contains invalid characters", s)
		}
	}
	return Genre(s), nil
}

func isGenreChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == ' '
}

// CanonicalizeGenre lowercases s and maps characters outside the genre
// alphabet to spaces before validating.
func CanonicalizeGenre(s string) (Genre, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return ParseGenre(strings.TrimSpace(b.String()))
}

func (g Genre) String() string { return string(g) }

// Genres is an order-insensitive genre set. Insertion deduplicates.
type Genres []Genre

// ParseGenres validates every element of raw.
func ParseGenres(raw []string) (Genres, error) {
	var genres Genres
	for _, s := range raw {
		g, err := ParseGenre(s)
		if err != nil {
			return nil, err
		}
		genres = genres.Insert(g)
	}
	return genres, nil
}

// Contains reports whether g holds genre.
func (gs Genres) Contains(genre Genre) bool {
	for _, g := range gs {
		if g == genre {
			return true
		}
	}
	return false
}

// Insert adds genre if not already present and returns the set.
func (gs Genres) Insert(genre Genre) Genres {
	if gs.Contains(genre) {
		return gs
	}
	return append(gs, genre)
}

// Remove drops genre from the set and returns it.
func (gs Genres) Remove(genre Genre) Genres {
	for i, g := range gs {
		if g == genre {
			return append(gs[:i], gs[i+1:]...)
		}
	}
	return gs
}

// Strings returns the genres as plain strings.
func (gs Genres) Strings() []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}

// GenreUpdateAction selects what a [GenreUpdate] does to its genre.
type GenreUpdateAction int

const (
	GenreActionSet GenreUpdateAction = iota
	GenreActionRemove
)

// GenreUpdate inserts or removes a single genre.
type GenreUpdate struct {
	Genre  Genre
	Action GenreUpdateAction
}

// GenreSet returns an update that inserts genre.
func GenreSet(genre Genre) GenreUpdate {
	return GenreUpdate{Genre: genre, Action: GenreActionSet}
}

// GenreRemove returns an update that removes genre.
func GenreRemove(genre Genre) GenreUpdate {
	return GenreUpdate{Genre: genre, Action: GenreActionRemove}
}

// ApplyUpdates applies each update in order and returns the resulting set.
func (gs Genres) ApplyUpdates(updates []GenreUpdate) Genres {
	out := gs
	for _, update := range updates {
		switch update.Action {
		case GenreActionSet:
			out = out.Insert(update.Genre)
		case GenreActionRemove:
			out = out.Remove(update.Genre)
		}
	}
	return out
}
