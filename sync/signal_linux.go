// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux

package sync

import (
	"context"
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"

	"github.com/nxgtw/efdstream/internal/common"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

const (
	counterSize = 8
	// the largest value an eventfd counter can hold.
	maxCounter = 0xfffffffffffffffe
)

// testHookBeforeDrain is called by wait before it drains an interrupt.
var testHookBeforeDrain func(s *signal)

// signal is an eventfd counter. waits poll the counter together with a private
// interrupt eventfd, which is raised by close and by context cancellation.
type signal struct {
	name      string
	fd        int
	intr      int
	mu        sync.Mutex
	closed    atomic.Bool
	active    sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newSignal(name string) (*signal, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(common.NewSyscallError("eventfd", err), "failed to create signal")
	}
	s, err := withInterrupt(fd, name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func signalFromFd(fd int, name string) (*signal, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, errors.Wrapf(common.NewSyscallError("fstat", err), "invalid signal descriptor %d", fd)
	}
	unix.CloseOnExec(fd)
	return withInterrupt(fd, name)
}

func withInterrupt(fd int, name string) (*signal, error) {
	intr, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(common.NewSyscallError("eventfd", err), "failed to create interrupt")
	}
	return &signal{name: name, fd: fd, intr: intr}, nil
}

// enter registers an operation on the descriptors, which must not be closed until leave.
func (s *signal) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.active.Add(1)
	return true
}

func (s *signal) leave() {
	s.active.Done()
}

func (s *signal) raise(n uint64) error {
	if n == 0 {
		return ErrZeroRaise
	}
	if n > maxCounter {
		return errors.Errorf("raise value %d exceeds the counter limit", n)
	}
	if !s.enter() {
		return ErrClosed
	}
	defer s.leave()
	var buf [counterSize]byte
	binary.NativeEndian.PutUint64(buf[:], n)
	for {
		_, err := unix.Write(s.fd, buf[:])
		if err == nil {
			return nil
		}
		if !common.IsInterruptedSyscallErr(err) {
			return errors.Wrapf(common.NewSyscallError("write", err), "failed to raise %s", s.name)
		}
	}
}

func (s *signal) wait(ctx context.Context) (uint64, error) {
	if !s.enter() {
		return 0, ErrClosed
	}
	defer s.leave()
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, s.interrupt)
		defer stop()
	}
	fds := []unix.PollFd{
		{Fd: int32(s.fd), Events: unix.POLLIN},
		{Fd: int32(s.intr), Events: unix.POLLIN},
	}
	for {
		fds[0].Revents, fds[1].Revents = 0, 0
		if _, err := unix.Poll(fds, -1); err != nil {
			if common.IsInterruptedSyscallErr(err) {
				continue
			}
			return 0, errors.Wrapf(common.NewSyscallError("poll", err), "failed to wait for %s", s.name)
		}
		interrupted := fds[1].Revents&unix.POLLIN != 0
		if interrupted && s.closed.Load() {
			return 0, ErrClosed
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return 0, ErrClosed
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			value, err := s.read()
			if err == nil {
				return value, nil
			}
			if !common.IsTemporaryErr(err) {
				return 0, err
			}
		}
		if interrupted {
			if testHookBeforeDrain != nil {
				testHookBeforeDrain(s)
			}
			s.drainInterrupt()
			// the drained value may include the one written by close.
			if s.closed.Load() {
				return 0, ErrClosed
			}
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}
}

func (s *signal) read() (uint64, error) {
	var buf [counterSize]byte
	n, err := unix.Read(s.fd, buf[:])
	if err != nil {
		if common.IsClosedErr(err) {
			return 0, ErrClosed
		}
		return 0, errors.Wrapf(common.NewSyscallError("read", err), "failed to read %s", s.name)
	}
	if n != counterSize {
		return 0, errors.Errorf("short read from %s: %d bytes", s.name, n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (s *signal) interrupt() {
	var buf [counterSize]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	unix.Write(s.intr, buf[:])
}

func (s *signal) drainInterrupt() {
	var buf [counterSize]byte
	unix.Read(s.intr, buf[:])
}

func (s *signal) file() (*os.File, error) {
	if !s.enter() {
		return nil, ErrClosed
	}
	defer s.leave()
	fd, err := unix.FcntlInt(uintptr(s.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(common.NewSyscallError("fcntl", err), "failed to duplicate %s", s.name)
	}
	return os.NewFile(uintptr(fd), s.name), nil
}

func (s *signal) close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		s.mu.Unlock()
		s.interrupt()
		s.active.Wait()
		s.closeErr = multierr.Combine(
			closeFd(s.fd, s.name),
			closeFd(s.intr, s.name+" interrupt"),
		)
	})
	return s.closeErr
}

func closeFd(fd int, name string) error {
	if err := unix.Close(fd); err != nil {
		return errors.Wrapf(common.NewSyscallError("close", err), "failed to close %s", name)
	}
	return nil
}
