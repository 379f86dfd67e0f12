package subsonic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

// VideoSize is a `WxH` pixel dimension pair.
type VideoSize struct {
	Width  uint32
	Height uint32
}

// ParseVideoSize parses the `WxH` form.
func ParseVideoSize(s string) (VideoSize, error) {
	width, height, ok := strings.Cut(s, "x")
	if !ok {
		return VideoSize{}, shared.Invalidf("%q is not a video size", s)
	}
	w, err := strconv.ParseUint(width, 10, 32)
	if err != nil {
		return VideoSize{}, shared.Invalidf("%q is not a video size: bad width", s)
	}
	h, err := strconv.ParseUint(height, 10, 32)
	if err != nil {
		return VideoSize{}, shared.Invalidf("%q is not a video size: bad height", s)
	}
	return VideoSize{Width: uint32(w), Height: uint32(h)}, nil
}

func (v VideoSize) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// VideoBitrate is a bitrate with an optional size constraint, written as
// `N` or `N@WxH`.
type VideoBitrate struct {
	Bitrate uint32
	Size    *VideoSize
}

// ParseVideoBitrate parses the `N[@WxH]` form.
func ParseVideoBitrate(s string) (VideoBitrate, error) {
	bitrate, size, hasSize := strings.Cut(s, "@")
	b, err := strconv.ParseUint(bitrate, 10, 32)
	if err != nil {
		return VideoBitrate{}, shared.Invalidf("%q is not a video bitrate", s)
	}
	out := VideoBitrate{Bitrate: uint32(b)}
	if hasSize {
		parsed, err := ParseVideoSize(size)
		if err != nil {
			return VideoBitrate{}, shared.Invalidf("%q is not a video bitrate: %v", s, err)
		}
		out.Size = &parsed
	}
	return out, nil
}

func (v VideoBitrate) String() string {
	if v.Size != nil {
		return fmt.Sprintf("%d@%s", v.Bitrate, v.Size)
	}
	return strconv.FormatUint(uint64(v.Bitrate), 10)
}

// ErrorCode is a legacy subsonic wire error code.
type ErrorCode uint32

const (
	CodeGeneric               ErrorCode = 0
	CodeRequiredParamMissing  ErrorCode = 10
	CodeIncompatibleClient    ErrorCode = 20
	CodeIncompatibleServer    ErrorCode = 30
	CodeWrongUsernameOrPass   ErrorCode = 40
	CodeTokenAuthNotSupported ErrorCode = 41
	CodeNotAuthorized         ErrorCode = 50
	CodeTrialExpired          ErrorCode = 60
	CodeDataNotFound          ErrorCode = 70
)

// wireError is a subsonic error with its wire code; the dispatch layer
// renders it inside the envelope.
type wireError struct {
	code    ErrorCode
	message string
}

func (e *wireError) Error() string { return e.message }

func codedErrorf(code ErrorCode, format string, args ...any) error {
	return &wireError{code: code, message: fmt.Sprintf(format, args...)}
}

// errorCodeFor maps an error to its wire code. Coded errors pass through;
// catalog errors map by kind.
func errorCodeFor(err error) (ErrorCode, string) {
	var coded *wireError
	if errors.As(err, &coded) {
		return coded.code, coded.message
	}
	switch shared.KindOf(err) {
	case shared.KindInvalid:
		return CodeRequiredParamMissing, err.Error()
	case shared.KindNotFound:
		return CodeDataNotFound, err.Error()
	case shared.KindUnauthorized:
		return CodeWrongUsernameOrPass, err.Error()
	default:
		return CodeGeneric, err.Error()
	}
}
