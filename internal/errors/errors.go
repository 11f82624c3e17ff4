package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Moment error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrInvalidImage      ErrorCode = "INVALID_IMAGE"      // 400
	ErrNoImageSelected   ErrorCode = "NO_IMAGE_SELECTED"  // 400
	ErrAccessDenied      ErrorCode = "ACCESS_DENIED"      // 403
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"     // 404
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION" // 409
	ErrBusy              ErrorCode = "BUSY"               // 409
	ErrInternal          ErrorCode = "INTERNAL"           // 500
	ErrCancelled         ErrorCode = "CANCELLED"          // 499
	ErrNoDevice          ErrorCode = "NO_DEVICE"          // 503
)

// MomentError represents a structured error with code, status, and details.
type MomentError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MomentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MomentError {
	return &MomentError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidImage creates a 400 error for image data that cannot be decoded.
func NewInvalidImage(err error) *MomentError {
	msg := "image could not be decoded"
	if err != nil {
		msg = fmt.Sprintf("image could not be decoded: %v", err)
	}
	return &MomentError{
		Code:    ErrInvalidImage,
		Status:  400,
		Message: msg,
	}
}

// NewNoImageSelected creates a 400 error for a finalize attempt without an image.
func NewNoImageSelected() *MomentError {
	return &MomentError{
		Code:    ErrNoImageSelected,
		Status:  400,
		Message: "no image selected",
	}
}

// NewAccessDenied creates a 403 error when the camera cannot be opened.
func NewAccessDenied(err error) *MomentError {
	msg := "camera unavailable"
	if err != nil {
		msg = fmt.Sprintf("camera unavailable: %v", err)
	}
	return &MomentError{
		Code:    ErrAccessDenied,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a post cannot be found.
func NewNotFound(identifier string) *MomentError {
	return &MomentError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("post not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file.
func NewFileNotFound(path string) *MomentError {
	return &MomentError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its context.
func NewCancelled(op string) *MomentError {
	return &MomentError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInvalidTransition creates a 409 error for an event the current mode does not accept.
func NewInvalidTransition(mode, event string) *MomentError {
	return &MomentError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("%s is not allowed in %s mode", event, mode),
		Details: map[string]any{"mode": mode, "event": event},
	}
}

// NewBusy creates a 409 error while a finalize is still in flight.
func NewBusy() *MomentError {
	return &MomentError{
		Code:    ErrBusy,
		Status:  409,
		Message: "upload already in progress",
	}
}

// NewNoDevice creates a 503 error when no video input device exists.
func NewNoDevice() *MomentError {
	return &MomentError{
		Code:    ErrNoDevice,
		Status:  503,
		Message: "no camera device found",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MomentError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MomentError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a MomentError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MomentError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}
