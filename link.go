// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/nxgtw/efdstream/channel"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Link is the parent's end of a channel with a running child.
// It sends on the parent-to-child direction and receives on the child-to-parent one.
type Link struct {
	proc             Process
	sender           *channel.Sender
	receiver         *channel.Receiver
	log              *zap.Logger
	terminateTimeout time.Duration

	exited  chan struct{}
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

func newLink(proc Process, sender *channel.Sender, receiver *channel.Receiver, log *zap.Logger, terminateTimeout time.Duration) *Link {
	l := &Link{
		proc:             proc,
		sender:           sender,
		receiver:         receiver,
		log:              log,
		terminateTimeout: terminateTimeout,
		exited:           make(chan struct{}),
	}
	go l.watch()
	return l
}

// watch reaps the child. Once it has exited, no one will answer,
// so blocked operations are interrupted.
func (l *Link) watch() {
	l.exitErr = l.proc.Wait()
	l.log.Info("child exited", zap.Error(l.exitErr))
	if err := multierr.Combine(l.sender.Disconnect(), l.receiver.Disconnect()); err != nil {
		l.log.Warn("failed to disconnect", zap.Error(err))
	}
	close(l.exited)
}

// Sender returns the parent-to-child sender.
func (l *Link) Sender() *channel.Sender {
	return l.sender
}

// Receiver returns the child-to-parent receiver.
func (l *Link) Receiver() *channel.Receiver {
	return l.receiver
}

// Pid returns child's pid.
func (l *Link) Pid() int {
	return l.proc.Pid()
}

// Exited returns a channel, which is closed after the child has exited.
func (l *Link) Exited() <-chan struct{} {
	return l.exited
}

// ExitErr returns the result of waiting for the child.
// It must be called only after Exited is closed.
func (l *Link) ExitErr() error {
	return l.exitErr
}

// Send sends payload to the child and waits for the acknowledgement.
func (l *Link) Send(payload []byte) error {
	return l.sender.Send(payload)
}

// SendContext is like Send, but stops waiting, when ctx is done.
func (l *Link) SendContext(ctx context.Context, payload []byte) error {
	return l.sender.SendContext(ctx, payload)
}

// Receive waits for a message from the child.
func (l *Link) Receive(ctx context.Context) ([]byte, error) {
	return l.receiver.Receive(ctx)
}

// Listen calls handler for every message from the child,
// until the child exits, the link is closed, or ctx is done.
func (l *Link) Listen(ctx context.Context, handler channel.Handler) error {
	return l.receiver.Listen(ctx, handler)
}

// Run sends messages from outbound and passes incoming ones to handler.
// See the package-level Run.
func (l *Link) Run(ctx context.Context, outbound <-chan []byte, handler channel.Handler) error {
	return Run(ctx, l.sender, l.receiver, outbound, handler)
}

// Close releases both directions and terminates the child, if it is still running:
// it is sent SIGTERM, and killed, if it does not exit in time.
// It is safe to call Close more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = multierr.Combine(
			l.sender.Close(),
			l.receiver.Close(),
			l.terminate(),
		)
	})
	return l.closeErr
}

func (l *Link) terminate() error {
	select {
	case <-l.exited:
		return nil
	default:
	}
	l.log.Debug("terminating child")
	if err := l.proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrap(err, "failed to terminate child")
	}
	timer := time.NewTimer(l.terminateTimeout)
	defer timer.Stop()
	select {
	case <-l.exited:
		return nil
	case <-timer.C:
	}
	l.log.Warn("child did not exit in time, killing", zap.Duration("timeout", l.terminateTimeout))
	if err := l.proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrap(err, "failed to kill child")
	}
	<-l.exited
	return nil
}
