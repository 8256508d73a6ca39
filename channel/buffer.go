// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	"github.com/nxgtw/efdstream/mmf"

	"github.com/pkg/errors"
)

// Buffer is a bounds-checked view of a mapped shared memory region.
// Every access is limited to [0, Cap()).
type Buffer struct {
	region   *mmf.MemoryRegion
	reader   *mmf.MemoryRegionReader
	writer   *mmf.MemoryRegionWriter
	writable bool
}

func newBuffer(region *mmf.MemoryRegion, writable bool) *Buffer {
	return &Buffer{
		region:   region,
		reader:   mmf.NewMemoryRegionReader(region),
		writer:   mmf.NewMemoryRegionWriter(region),
		writable: writable,
	}
}

// Cap returns buffer's capacity in bytes.
func (b *Buffer) Cap() int {
	return b.region.Size()
}

// Writable returns true, if the buffer was mapped for writing.
func (b *Buffer) Writable() bool {
	return b.writable
}

// Put copies p to the beginning of the buffer.
// Nothing is copied, if p does not fit.
func (b *Buffer) Put(p []byte) error {
	if !b.writable {
		return ErrReadOnly
	}
	if len(p) > b.Cap() {
		return errors.Wrapf(ErrPayloadTooLarge, "%d bytes, capacity %d", len(p), b.Cap())
	}
	_, err := b.writer.WriteAt(p, 0)
	return err
}

// Bytes returns the first n bytes of the buffer.
// The slice aliases shared memory and is valid until the buffer is released.
func (b *Buffer) Bytes(n int) ([]byte, error) {
	if n < 0 || n > b.Cap() {
		return nil, errors.Errorf("range [0, %d) is out of buffer bounds [0, %d)", n, b.Cap())
	}
	return b.region.Data()[:n:n], nil
}

// Copy returns a copy of the first n bytes of the buffer.
func (b *Buffer) Copy(n int) ([]byte, error) {
	if n < 0 || n > b.Cap() {
		return nil, errors.Errorf("range [0, %d) is out of buffer bounds [0, %d)", n, b.Cap())
	}
	result := make([]byte, n)
	if _, err := b.reader.ReadAt(result, 0); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Buffer) release() error {
	return b.region.Close()
}
