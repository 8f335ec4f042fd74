package errs

import (
	"github.com/pkg/errors"
)

// Error codes for the decode pipeline. Soft conditions (NoSurfaces) pause
// the decode loop; everything else is fatal for the current session.
const (
	CodeInvalidStream     = 3001
	CodeUnsupportedStream = 3002
	CodeDpbFull           = 3003
	CodePlatformFailure   = 3004
	CodeNoSurfaces        = 3005
	CodeInvalidArgument   = 3006
	CodeUnknown           = 9999
)

var (
	ErrNoSurfaces = New(CodeNoSurfaces, "no output surfaces available")

	ErrInterlacedNotSupported = New(CodeUnsupportedStream, "interlaced streams not supported")
	ErrFrameMbsOnlyNotSet     = New(CodeUnsupportedStream, "frame_mbs_only_flag != 1 not supported")
	ErrFrameNumGap            = New(CodeUnsupportedStream, "gap in frame_num")

	ErrDpbFull = New(CodeDpbFull, "no room in DPB")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

func Code(e error) int32 {
	if e == nil {
		return 0
	}
	err, ok := errors.Cause(e).(*Error)
	if !ok {
		return CodeUnknown
	}

	if err == (*Error)(nil) {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	err, ok := errors.Cause(e).(*Error)
	if !ok {
		return "unknown error: " + e.Error()
	}

	if err == (*Error)(nil) {
		return Success
	}

	return err.Msg
}

// IsNoSurfaces reports whether e is the soft out-of-surfaces condition.
func IsNoSurfaces(e error) bool {
	return Code(e) == CodeNoSurfaces
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
