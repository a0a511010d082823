package apperr

import (
	"errors"
	"fmt"
	"syscall"
)

// AppError is the standard error type for the application.
type AppError struct {
	// Code is the canonical errno for this error. The FUSE bridge
	// returns it to the kernel unchanged.
	Code syscall.Errno

	// Message is a user-facing error message.
	Message string

	// Err is the underlying wrapped error, for internal logging.
	Err error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError without a wrapped error.
func New(code syscall.Errno, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Wrap creates a new AppError that wraps an existing error.
func Wrap(code syscall.Errno, msg string, err error) *AppError {
	return &AppError{Code: code, Message: msg, Err: err}
}

// Errno extracts the errno carried by err. Unknown errors map to EIO,
// nil maps to 0.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return syscall.EIO
}

// --- Pre-defined application level errors ---

func NotFound(path string) *AppError {
	return New(syscall.ENOENT, fmt.Sprintf("path '%s' not found", path))
}

func AlreadyExists(path string) *AppError {
	return New(syscall.EEXIST, fmt.Sprintf("path '%s' already exists", path))
}

func IsDirectory(path string) *AppError {
	return New(syscall.EISDIR, fmt.Sprintf("path '%s' is a directory", path))
}

func NotADirectory(path string) *AppError {
	return New(syscall.ENOTDIR, fmt.Sprintf("path '%s' is not a directory", path))
}

func NotEmpty(path string) *AppError {
	return New(syscall.ENOTEMPTY, fmt.Sprintf("directory '%s' is not empty", path))
}

func IO(msg string, err error) *AppError {
	return Wrap(syscall.EIO, msg, err)
}

func TimedOut(op, path string) *AppError {
	return New(syscall.ETIMEDOUT, fmt.Sprintf("%s on '%s' timed out", op, path))
}

func Busy(driveID int) *AppError {
	return New(syscall.EBUSY, fmt.Sprintf("drive %d queue is full", driveID))
}

func Canceled(msg string) *AppError {
	return New(syscall.ECANCELED, msg)
}

func InvalidArgument(msg string) *AppError {
	return New(syscall.EINVAL, msg)
}
