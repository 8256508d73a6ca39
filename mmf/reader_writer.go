// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mmf

import (
	"io"

	"github.com/pkg/errors"
)

// MemoryRegionReader is a reader for safe operations over a shared memory region.
// It holds a reference to the region, so the former can't be gc'ed.
type MemoryRegionReader struct {
	region *MemoryRegion
}

// NewMemoryRegionReader creates a new reader for the given region.
func NewMemoryRegionReader(region *MemoryRegion) *MemoryRegionReader {
	return &MemoryRegionReader{region: region}
}

// ReadAt is to implement io.ReaderAt.
// It never reads outside of the region. A closed region reads as empty.
func (r *MemoryRegionReader) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	data := r.region.Data()
	if off < int64(len(data)) {
		n = copy(p, data[off:])
	}
	if n < len(p) {
		err = io.EOF
	}
	return
}

// MemoryRegionWriter is a writer for safe operations over a shared memory region.
// It holds a reference to the region, so the former can't be gc'ed.
type MemoryRegionWriter struct {
	region *MemoryRegion
}

// NewMemoryRegionWriter creates a new writer for the given region.
func NewMemoryRegionWriter(region *MemoryRegion) *MemoryRegionWriter {
	return &MemoryRegionWriter{region: region}
}

// WriteAt is to implement io.WriterAt.
// It never writes outside of the region. If p does not fit,
// the part that fits is written and io.EOF is returned.
func (w *MemoryRegionWriter) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	data := w.region.Data()
	if off < int64(len(data)) {
		n = copy(data[off:], p)
	}
	if n < len(p) {
		err = io.EOF
	}
	return
}
