package camera

import (
	"errors"
	"fmt"
)

// ErrorCode classifies driver failures
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeModelNotFound
	CodeBusy
	CodeIO
	CodeTimeout
	CodeCameraError
	CodeBadParameters
	CodeNotSupported
)

// String returns the code name
func (c ErrorCode) String() string {
	switch c {
	case CodeModelNotFound:
		return "model_not_found"
	case CodeBusy:
		return "busy"
	case CodeIO:
		return "io"
	case CodeTimeout:
		return "timeout"
	case CodeCameraError:
		return "camera_error"
	case CodeBadParameters:
		return "bad_parameters"
	case CodeNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// DriverError represents a classified low-level device failure
type DriverError struct {
	Code ErrorCode
	Op   string
	Msg  string
}

// Error implements the error interface
func (e *DriverError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
}

// NewDriverError creates a classified driver error
func NewDriverError(code ErrorCode, op, msg string) *DriverError {
	return &DriverError{Code: code, Op: op, Msg: msg}
}

// ConnectionError indicates the device could not be reached; the session
// stays disconnected and the operation is safe to retry later.
type ConnectionError struct {
	Reason string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return "camera connection failed: " + e.Reason
}

// VerificationError indicates a setting write was acknowledged by the
// device but the readback did not match the requested value.
type VerificationError struct {
	Path      string
	Requested string
	Actual    string
}

// Error implements the error interface
func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed for %q: value is %q after attempting to set %q",
		e.Path, e.Actual, e.Requested)
}

// Sentinel errors
var (
	// ErrEmptyFrame is returned when a preview capture yields no data.
	// Transient, the connection handle is kept.
	ErrEmptyFrame = errors.New("captured preview data is empty")

	// ErrSettingNotFound is returned when a settings path resolves to nothing
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSettingReadOnly is returned when writing a read-only setting
	ErrSettingReadOnly = errors.New("setting is read-only")
)

// codeOf extracts the ErrorCode from an error chain
func codeOf(err error) ErrorCode {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeUnknown
}

// shouldTeardown reports whether a failure during an in-progress operation
// indicates a dead or unknown-state connection. Only classified parameter
// and capability errors leave the handle usable; an unclassified error
// means the handle state is unknown and the handle is released.
func shouldTeardown(err error) bool {
	var de *DriverError
	if !errors.As(err, &de) {
		return true
	}
	switch de.Code {
	case CodeBadParameters, CodeNotSupported:
		return false
	default:
		return true
	}
}
