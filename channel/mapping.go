// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	"sync"

	"github.com/nxgtw/efdstream/mmf"
	"github.com/nxgtw/efdstream/shm"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type mappingState int

const (
	unattached mappingState = iota
	attached
	released
)

// Mapping owns a direction's memory object and its mapping into the current process.
// The object is mapped at most once, either explicitly by Attach,
// or on first use by Buffer, and is unmapped once by Release.
// A released mapping is never attached again.
type Mapping struct {
	mu       sync.Mutex
	obj      *shm.MemoryObject
	size     int
	writable bool
	state    mappingState
	buf      *Buffer
}

// NewMapping returns an unattached mapping of the first size bytes of obj.
// The mapping takes ownership of obj.
func NewMapping(obj *shm.MemoryObject, size int, writable bool) *Mapping {
	return &Mapping{obj: obj, size: size, writable: writable}
}

// NewAttachedMapping returns a mapping for a region, which has already been mapped.
// The mapping takes ownership of both obj and region.
func NewAttachedMapping(obj *shm.MemoryObject, region *mmf.MemoryRegion, writable bool) *Mapping {
	return &Mapping{
		obj:      obj,
		size:     region.Size(),
		writable: writable,
		state:    attached,
		buf:      newBuffer(region, writable),
	}
}

// Size returns the capacity of the mapping.
func (m *Mapping) Size() int {
	return m.size
}

// Attached returns true, if the object is currently mapped.
func (m *Mapping) Attached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == attached
}

// Attach maps the object. It fails with ErrAlreadyAttached, if it is already mapped,
// and with ErrClosed after Release.
func (m *Mapping) Attach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case attached:
		return ErrAlreadyAttached
	case released:
		return ErrClosed
	}
	return m.attach()
}

// Buffer returns the mapped buffer, attaching it on first use.
func (m *Mapping) Buffer() (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case unattached:
		if err := m.attach(); err != nil {
			return nil, err
		}
	case released:
		return nil, ErrClosed
	}
	return m.buf, nil
}

func (m *Mapping) attach() error {
	mode := mmf.MEM_READ_ONLY
	if m.writable {
		mode = mmf.MEM_READWRITE
	}
	region, err := mmf.NewMemoryRegion(m.obj, mode, m.size)
	if err != nil {
		return errors.Wrapf(err, "failed to attach %s", m.obj.Name())
	}
	m.buf = newBuffer(region, m.writable)
	m.state = attached
	return nil
}

// Release unmaps the buffer and closes the memory object.
// It is safe to call Release on an unattached mapping, or more than once.
func (m *Mapping) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == released {
		return nil
	}
	var err error
	if m.state == attached {
		err = m.buf.release()
		m.buf = nil
	}
	m.state = released
	return multierr.Append(err, m.obj.Close())
}
