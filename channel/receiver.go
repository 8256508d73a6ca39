// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	"context"
	"sync"

	ipcsync "github.com/nxgtw/efdstream/sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handler is called by a receiver with each payload.
// The payload aliases the shared buffer and is valid only until the handler returns.
// The handler must not close the receiver.
type Handler func(payload []byte)

// Receiver is the reading side of a direction.
// Receive and Listen calls are serialized.
type Receiver struct {
	direction string
	data      *ipcsync.Signal
	ack       *ipcsync.Signal
	mapping   *Mapping
	log       *zap.Logger
	observer  Observer

	mu sync.Mutex
}

// NewReceiver returns a receiver. It takes ownership of the signals and the mapping.
func NewReceiver(cfg Config) *Receiver {
	return &Receiver{
		direction: cfg.Direction,
		data:      cfg.Data,
		ack:       cfg.Ack,
		mapping:   cfg.Mapping,
		log:       cfg.logger(),
		observer:  cfg.observer(),
	}
}

// Direction returns receiver's direction label.
func (r *Receiver) Direction() string {
	return r.direction
}

// Cap returns the capacity of the shared buffer.
func (r *Receiver) Cap() int {
	return r.mapping.Size()
}

// Attached returns true, if the shared buffer is mapped.
func (r *Receiver) Attached() bool {
	return r.mapping.Attached()
}

// Attach maps the shared buffer now instead of on first Receive.
func (r *Receiver) Attach() error {
	return r.mapping.Attach()
}

// Receive waits for a single message and returns a copy of it.
func (r *Receiver) Receive(ctx context.Context) ([]byte, error) {
	var result []byte
	err := r.receive(ctx, func(buf *Buffer, n int) (err error) {
		result, err = buf.Copy(n)
		return err
	})
	return result, err
}

// Listen calls handler for every message, until the transport is closed,
// or ctx is done. It always returns a non-nil error: one satisfying
// errors.Is(err, ErrClosed) on transport closure, or ctx.Err().
func (r *Receiver) Listen(ctx context.Context, handler Handler) error {
	consume := func(buf *Buffer, n int) error {
		payload, err := buf.Bytes(n)
		if err != nil {
			return err
		}
		handler(payload)
		return nil
	}
	for {
		if err := r.receive(ctx, consume); err != nil {
			return err
		}
	}
}

// receive waits for a valid length, passes it to consume, and acks the message.
func (r *Receiver) receive(ctx context.Context, consume func(buf *Buffer, n int) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, err := r.mapping.Buffer()
	if err != nil {
		return err
	}
	for {
		length, err := r.data.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			return errors.Wrapf(err, "%s: failed to wait for payload", r.direction)
		}
		if length > uint64(buf.Cap()) {
			r.log.Warn("discarding payload signal exceeding buffer capacity",
				zap.Uint64("length", length),
				zap.Int("capacity", buf.Cap()))
			r.observer.ProtocolViolation(r.direction, length)
			continue
		}
		if err := consume(buf, int(length)); err != nil {
			return err
		}
		r.observer.MessageReceived(r.direction, int(length))
		if err := r.ack.Raise(1); err != nil {
			return errors.Wrapf(err, "%s: failed to ack payload", r.direction)
		}
		return nil
	}
}

// Disconnect closes the signals, so that a blocked Receive or Listen returns ErrClosed.
// The shared buffer stays mapped until Close.
func (r *Receiver) Disconnect() error {
	return multierr.Combine(r.data.Close(), r.ack.Close())
}

// Close disconnects the receiver and releases the shared buffer.
// It is safe to call Close more than once.
func (r *Receiver) Close() error {
	err := r.Disconnect()
	r.mu.Lock()
	defer r.mu.Unlock()
	return multierr.Append(err, r.mapping.Release())
}
