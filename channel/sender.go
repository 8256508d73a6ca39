// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	"context"
	"sync"
	"time"

	ipcsync "github.com/nxgtw/efdstream/sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sender is the writing side of a direction.
// There must be exactly one Sender per direction. Concurrent calls to Send
// are serialized: a second Send blocks until the first one is acknowledged.
type Sender struct {
	direction string
	data      *ipcsync.Signal
	ack       *ipcsync.Signal
	mapping   *Mapping
	log       *zap.Logger
	observer  Observer

	mu sync.Mutex
	// pending is set, if a send was cancelled while its message was in flight.
	pending bool
}

// NewSender returns a sender. It takes ownership of the signals and the mapping.
func NewSender(cfg Config) *Sender {
	return &Sender{
		direction: cfg.Direction,
		data:      cfg.Data,
		ack:       cfg.Ack,
		mapping:   cfg.Mapping,
		log:       cfg.logger(),
		observer:  cfg.observer(),
	}
}

// Direction returns sender's direction label.
func (s *Sender) Direction() string {
	return s.direction
}

// Cap returns the largest payload size Send accepts.
func (s *Sender) Cap() int {
	return s.mapping.Size()
}

// Attached returns true, if the shared buffer is mapped.
func (s *Sender) Attached() bool {
	return s.mapping.Attached()
}

// Attach maps the shared buffer now instead of on first Send.
func (s *Sender) Attach() error {
	return s.mapping.Attach()
}

// Send copies payload into the shared buffer, signals the receiver and waits for the ack.
// Payloads larger than Cap are rejected before the buffer is touched.
func (s *Sender) Send(payload []byte) error {
	return s.SendContext(context.Background(), payload)
}

// SendContext is like Send, but stops waiting when ctx is done.
// If it returns ctx.Err() after the message was signaled, the message stays in flight,
// and the next send waits for its ack before reusing the buffer.
func (s *Sender) SendContext(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	if len(payload) > s.Cap() {
		return errors.Wrapf(ErrPayloadTooLarge, "%d bytes, capacity %d", len(payload), s.Cap())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		if err := s.waitAck(ctx); err != nil {
			return err
		}
	}
	buf, err := s.mapping.Buffer()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := buf.Put(payload); err != nil {
		return err
	}
	if err := s.data.Raise(uint64(len(payload))); err != nil {
		return errors.Wrapf(err, "%s: failed to signal payload", s.direction)
	}
	s.pending = true
	if err := s.waitAck(ctx); err != nil {
		return err
	}
	s.observer.MessageSent(s.direction, len(payload), time.Since(start))
	return nil
}

func (s *Sender) waitAck(ctx context.Context) error {
	if _, err := s.ack.Wait(ctx); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			s.log.Debug("send cancelled while in flight")
			return err
		}
		return errors.Wrapf(err, "%s: failed to wait for ack", s.direction)
	}
	s.pending = false
	return nil
}

// Disconnect closes the signals, so that a blocked Send returns ErrClosed.
// The shared buffer stays mapped until Close.
func (s *Sender) Disconnect() error {
	return multierr.Combine(s.data.Close(), s.ack.Close())
}

// Close disconnects the sender and releases the shared buffer.
// It is safe to call Close more than once.
func (s *Sender) Close() error {
	err := s.Disconnect()
	s.mu.Lock()
	defer s.mu.Unlock()
	return multierr.Append(err, s.mapping.Release())
}
