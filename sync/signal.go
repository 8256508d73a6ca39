// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by operations on a closed signal.
	// A wait blocked on the signal returns it as soon as the signal is closed.
	ErrClosed = errors.New("signal closed")
	// ErrZeroRaise is returned when raising by zero, which would wake nobody.
	ErrZeroRaise = errors.New("zero raise value")
)

// Signal is an interprocess counting event.
// Raise adds to its counter. Wait blocks until the counter is non-zero,
// then atomically reads and resets it.
// A Signal can be shared with another process by passing its descriptor.
// Only one goroutine may wait on a signal at a time.
type Signal signal

// NewSignal creates a new signal with a zero counter.
// The name is used for diagnostics only.
func NewSignal(name string) (*Signal, error) {
	s, err := newSignal(name)
	if err != nil {
		return nil, err
	}
	return (*Signal)(s), nil
}

// SignalFromFd adopts an inherited signal descriptor.
// The signal takes ownership of fd.
func SignalFromFd(fd int, name string) (*Signal, error) {
	s, err := signalFromFd(fd, name)
	if err != nil {
		return nil, err
	}
	return (*Signal)(s), nil
}

// Raise adds n to the signal's counter, waking a waiter.
func (s *Signal) Raise(n uint64) error {
	return (*signal)(s).raise(n)
}

// Wait waits for the signal to be raised and returns the counter value,
// resetting the counter to zero.
// It returns ErrClosed, if the signal was closed, or ctx.Err(),
// if the context is done before a value was consumed.
func (s *Signal) Wait(ctx context.Context) (uint64, error) {
	return (*signal)(s).wait(ctx)
}

// File returns a duplicate of the signal's descriptor.
// The caller owns the file and must close it.
func (s *Signal) File() (*os.File, error) {
	return (*signal)(s).file()
}

// Name returns signal's name.
func (s *Signal) Name() string {
	return s.name
}

// Close closes the signal. A blocked Wait is interrupted.
// It is safe to call Close more than once.
func (s *Signal) Close() error {
	return (*signal)(s).close()
}
