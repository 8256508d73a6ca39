// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	slots            SlotTable
	size             int
	args             []string
	launcher         Launcher
	logger           *zap.Logger
	metrics          *Metrics
	lazy             bool
	terminateTimeout time.Duration
}

// Option configures a Builder or a Peer.
type Option func(*options)

func makeOptions(opts []Option) options {
	result := options{
		slots:            DefaultSlots(),
		size:             DefaultBufferSize,
		launcher:         ExecLauncher{},
		logger:           zap.NewNop(),
		terminateTimeout: DefaultTerminateTimeout,
	}
	for _, opt := range opts {
		opt(&result)
	}
	return result
}

// WithSlots sets the descriptor assignment table of the child.
func WithSlots(slots SlotTable) Option {
	return func(o *options) {
		o.slots = slots
	}
}

// WithBufferSize sets the capacity of both shared buffers.
func WithBufferSize(size int) Option {
	return func(o *options) {
		o.size = size
	}
}

// WithArgs sets the child's arguments, which precede the descriptor flags.
func WithArgs(args ...string) Option {
	return func(o *options) {
		o.args = append([]string(nil), args...)
	}
}

// WithLauncher replaces the default ExecLauncher.
func WithLauncher(launcher Launcher) Option {
	return func(o *options) {
		o.launcher = launcher
	}
}

// WithLogger sets the logger. The default one discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables traffic metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithLazyAttach makes a Peer map its shared buffers on first use
// instead of at construction.
// A parent always maps its buffers when they are created.
func WithLazyAttach() Option {
	return func(o *options) {
		o.lazy = true
	}
}

// WithTerminateTimeout sets how long Link.Close waits for the child to exit
// after SIGTERM, before killing it.
func WithTerminateTimeout(d time.Duration) Option {
	return func(o *options) {
		o.terminateTimeout = d
	}
}
