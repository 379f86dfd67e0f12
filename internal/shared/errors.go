package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the catalog can surface.
//
// Call sites wrap these with fmt.Errorf("%w: ...") so that errors.Is can
// recover the kind at the wire boundary.
var (
	ErrInvalid      = fmt.Errorf("invalid")
	ErrNotFound     = fmt.Errorf("not found")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrInternal     = fmt.Errorf("internal error")
)

// ErrorKind is the coarse classification of an error, mapped 1:1 onto the
// wire error taxonomies of the RPC and subsonic surfaces.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalid
	KindNotFound
	KindUnauthorized
)

// KindOf classifies err by walking its wrap chain. Unrecognized errors are
// internal.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// Invalidf wraps [ErrInvalid] with a formatted message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// NotFoundf wraps [ErrNotFound] with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Unauthorizedf wraps [ErrUnauthorized] with a formatted message.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Internalf wraps [ErrInternal] with a formatted message.
func Internalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}
