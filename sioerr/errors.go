// Package sioerr provides the error representation used internally by the
// image, drive, sio, and sdrive packages. Nothing in those packages panics;
// failures are returned as *DriverError values and converted to
// wire bytes (NAK/ERR/silent timeout) only at the sio.Channel boundary.
package sioerr

import "fmt"

// Errno is a small closed set of failure codes specific to this emulator
// core, in the spirit of a POSIX errno but scoped to SIO/disk-image
// concerns rather than a general file system.
type Errno string

const (
	// ENoImage means a command addressed a drive slot with no image mounted.
	ENoImage = Errno("no image mounted")
	// EReadOnly means a write or format was attempted against a read-only image.
	EReadOnly = Errno("image is read only")
	// EBadChecksum means a command or data frame failed its SIO checksum.
	EBadChecksum = Errno("bad checksum")
	// EBadSector means a sector number was out of range for the mounted image.
	EBadSector = Errno("sector out of range")
	// EUnrecognizedFormat means the image file didn't match any known layout.
	EUnrecognizedFormat = Errno("unrecognized image format")
	// EShortRead means fewer bytes were available than the sector size required.
	EShortRead = Errno("short read from image file")
	// EWriteFailed means the underlying stream rejected a write.
	EWriteFailed = Errno("write to image file failed")
	// EFormatFailed means a format operation could not complete.
	EFormatFailed = Errno("format failed")
	// ETimedOut means a command or data frame timed out waiting for bytes.
	ETimedOut = Errno("timed out waiting for frame")
	// EBadDevice means a command addressed a device ID outside D1..D8 / SDrive.
	EBadDevice = Errno("unrecognized device id")
	// EBadCommand means a command byte wasn't in the recognized table for the device.
	EBadCommand = Errno("unrecognized command")
)

func (e Errno) Error() string {
	return string(e)
}

// DriverError wraps an Errno with an optional contextual message, mirroring
// the teacher's errors.DriverError but closed over this domain's own code
// set instead of syscall.Errno.
type DriverError struct {
	Code    Errno
	message string
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Code.Error()
}

// Unwrap lets errors.Is/errors.As match against the underlying Errno.
func (e *DriverError) Unwrap() error {
	return e.Code
}

// New creates a DriverError with the default message for code.
func New(code Errno) *DriverError {
	return &DriverError{Code: code, message: code.Error()}
}

// Newf creates a DriverError from code with a custom formatted message.
func Newf(code Errno, format string, args ...any) *DriverError {
	return &DriverError{
		Code:    code,
		message: fmt.Sprintf("%s: %s", code.Error(), fmt.Sprintf(format, args...)),
	}
}
