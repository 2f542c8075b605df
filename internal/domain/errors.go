package domain

import "errors"

// ErrorCode identifies a recoverable engine error.
type ErrorCode string

const (
	ErrorCodePermissionDenied      ErrorCode = "permission_denied"
	ErrorCodeDeviceUnavailable     ErrorCode = "device_unavailable"
	ErrorCodeRecognizerStartFailed ErrorCode = "recognizer_start_failed"
	ErrorCodeRecognizerStopFailed  ErrorCode = "recognizer_stop_failed"
	ErrorCodePersistenceFailed     ErrorCode = "persistence_failed"
)

var (
	ErrPermissionDenied      = errors.New("microphone or recognition permission denied")
	ErrDeviceUnavailable     = errors.New("audio input device unavailable")
	ErrRecognizerStartFailed = errors.New("recognizer failed to start")
	ErrRecognizerStopFailed  = errors.New("recognizer failed to stop")
	ErrPersistenceFailed     = errors.New("transcript persistence failed")
)

// CodeOf maps an error chain to its ErrorCode. Unknown errors return "".
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return ErrorCodePermissionDenied
	case errors.Is(err, ErrDeviceUnavailable):
		return ErrorCodeDeviceUnavailable
	case errors.Is(err, ErrRecognizerStartFailed):
		return ErrorCodeRecognizerStartFailed
	case errors.Is(err, ErrRecognizerStopFailed):
		return ErrorCodeRecognizerStopFailed
	case errors.Is(err, ErrPersistenceFailed):
		return ErrorCodePersistenceFailed
	default:
		return ""
	}
}

// UserMessage returns the short message shown for code.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrorCodePermissionDenied:
		return "Microphone permission denied"
	case ErrorCodeDeviceUnavailable:
		return "Microphone unavailable"
	case ErrorCodeRecognizerStartFailed:
		return "Could not start recording"
	case ErrorCodeRecognizerStopFailed:
		return "Recording stopped with an error"
	case ErrorCodePersistenceFailed:
		return "Could not save transcript"
	default:
		return "Unknown error"
	}
}

// NewErrorInfo builds the user-visible error for err.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	return &ErrorInfo{Code: code, Message: UserMessage(code), Detail: err.Error()}
}
