package catalog

import "time"

// ValueUpdate is a three-valued per-field update: unchanged (the zero
// value), set to a new value, or unset. Unset on a non-nullable field is a
// validation failure at the persistence layer.
type ValueUpdate[T any] struct {
	kind  valueUpdateKind
	value T
}

type valueUpdateKind int

const (
	valueUnchanged valueUpdateKind = iota
	valueSet
	valueUnset
)

// Set returns an update that sets the field to v.
func Set[T any](v T) ValueUpdate[T] {
	return ValueUpdate[T]{kind: valueSet, value: v}
}

// Unset returns an update that clears the field.
func Unset[T any]() ValueUpdate[T] {
	return ValueUpdate[T]{kind: valueUnset}
}

// Get returns the new value and true when the update is a Set.
func (u ValueUpdate[T]) Get() (T, bool) {
	return u.value, u.kind == valueSet
}

// IsUnset reports whether the update clears the field.
func (u ValueUpdate[T]) IsUnset() bool { return u.kind == valueUnset }

// IsUnchanged reports whether the update leaves the field alone.
func (u ValueUpdate[T]) IsUnchanged() bool { return u.kind == valueUnchanged }

// ListParams is an offset/limit window over a listing. The zero value lists
// from the start with the default limit.
type ListParams struct {
	Offset int64
	Limit  int64
}

const defaultListLimit = 100000

func (p ListParams) offsetLimit() (int64, int64) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return p.Offset, limit
}

// ByteRange is a window into a blob. A zero Offset starts at the beginning;
// a Length <= 0 reads to the end.
type ByteRange struct {
	Offset int64
	Length int64
}

// IsFull reports whether the range covers the whole blob.
func (r ByteRange) IsFull() bool { return r.Offset == 0 && r.Length <= 0 }

// LyricsKind distinguishes synced lyrics with per-line offsets from plain
// unsynced text.
type LyricsKind string

const (
	LyricsKindSynced   LyricsKind = "synced"
	LyricsKindUnsynced LyricsKind = "unsynced"
)

// LyricsLine is one line of lyrics with its timing.
type LyricsLine struct {
	Offset   time.Duration
	Duration time.Duration
	Text     string
}

// Lyrics is an ordered sequence of lines of a given kind.
type Lyrics struct {
	Kind  LyricsKind
	Lines []LyricsLine
}

// Text joins all lines into one block of text.
func (l Lyrics) Text() string {
	text := ""
	for i, line := range l.Lines {
		if i > 0 {
			text += "\n"
		}
		text += line.Text
	}
	return text
}
