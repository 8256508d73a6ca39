// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"flag"
	"io"

	"github.com/nxgtw/efdstream/channel"
	"github.com/nxgtw/efdstream/shm"
	ipcsync "github.com/nxgtw/efdstream/sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Peer is the child's end of a channel.
// It receives on the parent-to-child direction and sends on the child-to-parent one.
type Peer struct {
	sender   *channel.Sender
	receiver *channel.Receiver
	log      *zap.Logger
}

// PeerFromArgs parses the descriptor flags from args
// and adopts the inherited descriptors. Flags, which are absent,
// take their default values (DefaultSlots and DefaultBufferSize).
func PeerFromArgs(args []string, opts ...Option) (*Peer, error) {
	fs := flag.NewFlagSet("efdstream", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	table, size := DefaultSlots(), DefaultBufferSize
	BindFlags(fs, &table, &size)
	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(err, "failed to parse descriptor flags")
	}
	return NewPeer(table, size, opts...)
}

// NewPeer adopts the inherited descriptors at the slots of table.
// The peer takes ownership of them.
func NewPeer(table SlotTable, size int, opts ...Option) (_ *Peer, err error) {
	if err = table.Validate(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid buffer size %d", size)
	}
	o := makeOptions(opts)
	var closers []io.Closer
	adopted := make(map[int]bool, 6)
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i].Close()
			}
			// the peer owns every inherited descriptor, including those it failed to adopt.
			for _, slot := range table.slots() {
				if !adopted[slot] {
					unix.Close(slot)
				}
			}
		}
	}()
	adoptSignal := func(fd int, name string) (*ipcsync.Signal, error) {
		s, err := ipcsync.SignalFromFd(fd, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to adopt descriptor %d", fd)
		}
		adopted[fd] = true
		closers = append(closers, s)
		return s, nil
	}
	adoptMemory := func(fd int, name string, writable bool) (*channel.Mapping, error) {
		obj, err := shm.OpenMemoryObject(fd, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to adopt descriptor %d", fd)
		}
		adopted[fd] = true
		closers = append(closers, obj)
		if obj.Size() < int64(size) {
			return nil, errors.Errorf("%s is %d bytes, expected at least %d", name, obj.Size(), size)
		}
		return channel.NewMapping(obj, size, writable), nil
	}
	var p2cData, p2cAck, c2pData, c2pAck *ipcsync.Signal
	var p2cMem, c2pMem *channel.Mapping
	if p2cData, err = adoptSignal(table.P2CSend, "efdstream-p2c-data"); err != nil {
		return nil, err
	}
	if p2cAck, err = adoptSignal(table.P2CAck, "efdstream-p2c-ack"); err != nil {
		return nil, err
	}
	if p2cMem, err = adoptMemory(table.P2CMem, "efdstream-p2c", false); err != nil {
		return nil, err
	}
	if c2pData, err = adoptSignal(table.C2PSend, "efdstream-c2p-data"); err != nil {
		return nil, err
	}
	if c2pAck, err = adoptSignal(table.C2PAck, "efdstream-c2p-ack"); err != nil {
		return nil, err
	}
	if c2pMem, err = adoptMemory(table.C2PMem, "efdstream-c2p", true); err != nil {
		return nil, err
	}
	if !o.lazy {
		if err = p2cMem.Attach(); err != nil {
			return nil, err
		}
		closers = append(closers, releaser{p2cMem})
		if err = c2pMem.Attach(); err != nil {
			return nil, err
		}
		closers = append(closers, releaser{c2pMem})
	}
	observer := observerOf(o.metrics)
	p := &Peer{log: o.logger}
	p.receiver = channel.NewReceiver(channel.Config{
		Direction: DirectionP2C,
		Data:      p2cData,
		Ack:       p2cAck,
		Mapping:   p2cMem,
		Logger:    o.logger,
		Observer:  observer,
	})
	p.sender = channel.NewSender(channel.Config{
		Direction: DirectionC2P,
		Data:      c2pData,
		Ack:       c2pAck,
		Mapping:   c2pMem,
		Logger:    o.logger,
		Observer:  observer,
	})
	o.logger.Debug("peer ready", zap.Any("slots", table), zap.Int("size", size), zap.Bool("lazy", o.lazy))
	return p, nil
}

type releaser struct {
	m *channel.Mapping
}

func (r releaser) Close() error {
	return r.m.Release()
}

// Sender returns the child-to-parent sender.
func (p *Peer) Sender() *channel.Sender {
	return p.sender
}

// Receiver returns the parent-to-child receiver.
func (p *Peer) Receiver() *channel.Receiver {
	return p.receiver
}

// Send sends payload to the parent and waits for the acknowledgement.
func (p *Peer) Send(payload []byte) error {
	return p.sender.Send(payload)
}

// SendContext is like Send, but stops waiting, when ctx is done.
func (p *Peer) SendContext(ctx context.Context, payload []byte) error {
	return p.sender.SendContext(ctx, payload)
}

// Receive waits for a message from the parent.
func (p *Peer) Receive(ctx context.Context) ([]byte, error) {
	return p.receiver.Receive(ctx)
}

// Listen calls handler for every message from the parent,
// until the peer is closed, or ctx is done.
func (p *Peer) Listen(ctx context.Context, handler channel.Handler) error {
	return p.receiver.Listen(ctx, handler)
}

// Run sends messages from outbound and passes incoming ones to handler.
// See the package-level Run.
func (p *Peer) Run(ctx context.Context, outbound <-chan []byte, handler channel.Handler) error {
	return Run(ctx, p.sender, p.receiver, outbound, handler)
}

// Close releases both directions.
// It is safe to call Close more than once.
func (p *Peer) Close() error {
	return multierr.Combine(p.sender.Close(), p.receiver.Close())
}
