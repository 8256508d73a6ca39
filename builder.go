// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"os"
	"sync"

	"github.com/nxgtw/efdstream/channel"
	"github.com/nxgtw/efdstream/internal/helper"
	"github.com/nxgtw/efdstream/mmf"
	"github.com/nxgtw/efdstream/shm"
	ipcsync "github.com/nxgtw/efdstream/sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Builder starts a link with a child program.
// The child is started in two stages: Prepare creates all shared resources,
// then Prepared.Spawn passes them to the child.
type Builder struct {
	program string
	opts    options
}

// NewBuilder returns a builder for the given program.
func NewBuilder(program string, opts ...Option) *Builder {
	return &Builder{program: program, opts: makeOptions(opts)}
}

// Prepare creates signals and shared memory for both directions.
// The returned object must be either spawned or closed.
func (b *Builder) Prepare() (*Prepared, error) {
	if err := b.opts.slots.Validate(); err != nil {
		return nil, err
	}
	if b.opts.size <= 0 {
		return nil, errors.Errorf("invalid buffer size %d", b.opts.size)
	}
	id := uuid.NewString()
	p2c, err := newDirection(DirectionP2C, id, b.opts.size)
	if err != nil {
		return nil, err
	}
	c2p, err := newDirection(DirectionC2P, id, b.opts.size)
	if err != nil {
		p2c.close()
		return nil, err
	}
	return &Prepared{program: b.program, opts: b.opts, id: id, p2c: p2c, c2p: c2p}, nil
}

// direction holds the parent's resources of one direction.
type direction struct {
	label  string
	data   *ipcsync.Signal
	ack    *ipcsync.Signal
	obj    *shm.MemoryObject
	region *mmf.MemoryRegion
}

func newDirection(label, id string, size int) (_ *direction, err error) {
	name := "efdstream-" + label + "-" + id
	d := &direction{label: label}
	defer func() {
		if err != nil {
			d.close()
		}
	}()
	if d.data, err = ipcsync.NewSignal(name + "-data"); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to create data signal", label)
	}
	if d.ack, err = ipcsync.NewSignal(name + "-ack"); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to create ack signal", label)
	}
	if d.obj, d.region, err = helper.CreateWritableRegion(name, size); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to create shared buffer", label)
	}
	return d, nil
}

func (d *direction) mapping() *channel.Mapping {
	return channel.NewAttachedMapping(d.obj, d.region, true)
}

func (d *direction) close() error {
	var err error
	for _, s := range []*ipcsync.Signal{d.data, d.ack} {
		if s != nil {
			err = multierr.Append(err, s.Close())
		}
	}
	if d.region != nil {
		err = multierr.Append(err, d.region.Close())
	}
	if d.obj != nil {
		err = multierr.Append(err, d.obj.Close())
	}
	return err
}

// Prepared holds the resources of a link, which has not been started yet.
type Prepared struct {
	program string
	opts    options
	id      string
	p2c     *direction
	c2p     *direction

	mu      sync.Mutex
	spawned bool
	closed  bool
}

// ID returns a unique identifier of the link, which is a part of its resource names.
func (p *Prepared) ID() string {
	return p.id
}

// Slots returns the descriptor assignment table of the child.
func (p *Prepared) Slots() SlotTable {
	return p.opts.slots
}

// Args returns the arguments the child is started with.
func (p *Prepared) Args() []string {
	return append(append([]string(nil), p.opts.args...), p.opts.slots.Args(p.opts.size)...)
}

// Spawn starts the child and returns the link.
// It can be called only once. If it fails, all resources are released.
func (p *Prepared) Spawn(ctx context.Context) (*Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spawned {
		return nil, ErrAlreadySpawned
	}
	if p.closed {
		return nil, ErrClosed
	}
	p.spawned = true
	proc, err := p.launch(ctx)
	if err != nil {
		return nil, multierr.Append(err, p.release())
	}
	log := p.opts.logger.With(zap.String("link", p.id), zap.Int("pid", proc.Pid()))
	log.Info("child started", zap.String("program", p.program), zap.Any("slots", p.opts.slots))
	observer := observerOf(p.opts.metrics)
	sender := channel.NewSender(channel.Config{
		Direction: DirectionP2C,
		Data:      p.p2c.data,
		Ack:       p.p2c.ack,
		Mapping:   p.p2c.mapping(),
		Logger:    log,
		Observer:  observer,
	})
	receiver := channel.NewReceiver(channel.Config{
		Direction: DirectionC2P,
		Data:      p.c2p.data,
		Ack:       p.c2p.ack,
		Mapping:   p.c2p.mapping(),
		Logger:    log,
		Observer:  observer,
	})
	return newLink(proc, sender, receiver, log, p.opts.terminateTimeout), nil
}

func (p *Prepared) launch(ctx context.Context) (Process, error) {
	slots := p.opts.slots
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	var assignments []Assignment
	for _, item := range []struct {
		signal *ipcsync.Signal
		slot   int
	}{
		{p.p2c.data, slots.P2CSend},
		{p.p2c.ack, slots.P2CAck},
		{p.c2p.data, slots.C2PSend},
		{p.c2p.ack, slots.C2PAck},
	} {
		f, err := item.signal.File()
		if err != nil {
			return nil, err
		}
		files = append(files, f)
		assignments = append(assignments, Assignment{File: f, Slot: item.slot})
	}
	assignments = append(assignments,
		Assignment{File: p.p2c.obj.File(), Slot: slots.P2CMem},
		Assignment{File: p.c2p.obj.File(), Slot: slots.C2PMem},
	)
	return p.opts.launcher.Launch(ctx, LaunchSpec{
		Program:     p.program,
		Args:        p.Args(),
		Assignments: assignments,
	})
}

// Close releases the resources, if the child has not been spawned.
// It is safe to call Close after Spawn, or more than once.
func (p *Prepared) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spawned || p.closed {
		return nil
	}
	return p.release()
}

func (p *Prepared) release() error {
	p.closed = true
	return multierr.Combine(p.p2c.close(), p.c2p.close())
}

// observerOf avoids passing a typed nil as an observer.
func observerOf(m *Metrics) channel.Observer {
	if m == nil {
		return nil
	}
	return m
}
