// Copyright 2016 Aleksandr Demakin. All rights reserved.

package common

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// SyscallErrHasCode returns true, if err is, or wraps, the given errno.
// It understands both bare errno values and *os.SyscallError.
func SyscallErrHasCode(err error, code syscall.Errno) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == code
	}
	return false
}

// IsInterruptedSyscallErr returns true, if the syscall was interrupted by a signal.
func IsInterruptedSyscallErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EINTR)
}

// IsTemporaryErr returns true for errors after which the call can be retried.
func IsTemporaryErr(err error) bool {
	return SyscallErrHasCode(err, syscall.EAGAIN) || IsInterruptedSyscallErr(err)
}

// IsClosedErr returns true, if the descriptor used in the call was already closed.
func IsClosedErr(err error) bool {
	return errors.Is(err, os.ErrClosed) || SyscallErrHasCode(err, syscall.EBADF)
}

// NewSyscallError wraps a non-nil errno as *os.SyscallError.
func NewSyscallError(name string, err error) error {
	return os.NewSyscallError(name, err)
}
