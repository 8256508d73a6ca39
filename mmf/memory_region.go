// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package mmf maps memory objects into the address space of the process.
package mmf

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// constants for memory regions
const (
	MEM_READ_ONLY = 0x00000001
	MEM_READWRITE = 0x00000004
)

// MemoryRegion is a shared mapping of the beginning of a memory object.
// Warning. The internal object has a finalizer set,
// so the region will be unmapped during the gc.
// Thus, you should be carefull getting internal data.
// For example, the following code may crash:
//
//	func f() {
//		region := NewMemoryRegion(...)
//		return g(region.Data())
//	}
//
// region may be gc'ed while its data is used by g().
// To avoid this, keep the region reachable, or use region readers/writers.
type MemoryRegion struct {
	*memoryRegion
}

// Mappable is a named object, which can return a handle,
// that can be used as a file descriptor for mmap.
type Mappable interface {
	Fd() uintptr
	Name() string
}

// NewMemoryRegion maps the first size bytes of an object.
//   - object - an object to mmap. if it can report its size, the mapping must fit into it.
//   - mode - open mode. see MEM_* constants
//   - size - mapping size.
func NewMemoryRegion(object Mappable, mode int, size int) (*MemoryRegion, error) {
	impl, err := newMemoryRegion(object, mode, size)
	if err != nil {
		return nil, err
	}
	result := &MemoryRegion{impl}
	runtime.SetFinalizer(impl, func(region *memoryRegion) {
		region.Close()
	})
	return result, nil
}

// Close unmaps the regions so that it cannot be longer used.
// It is safe to call Close more than once.
func (region *MemoryRegion) Close() error {
	return region.memoryRegion.Close()
}

// Data returns region's mapped data, or nil, if the region is closed.
func (region *MemoryRegion) Data() []byte {
	return region.memoryRegion.Data()
}

// Size returns mapping size.
func (region *MemoryRegion) Size() int {
	return region.memoryRegion.Size()
}

// fileInfoGetter is used to obtain file's size
type fileInfoGetter interface {
	Stat() (os.FileInfo, error)
}

func checkMmapSize(f Mappable, size int) error {
	if size <= 0 {
		return errors.Errorf("invalid mapping size %d", size)
	}
	ig, ok := f.(fileInfoGetter)
	if !ok {
		return nil
	}
	fi, err := ig.Stat()
	if err != nil {
		return errors.Wrap(err, "file size check failed")
	}
	// mmap allows mapping past the end of the object,
	// but accessing such pages raises SIGBUS.
	if int64(size) > fi.Size() {
		return errors.Errorf("mapping size %d exceeds object size %d", size, fi.Size())
	}
	return nil
}
