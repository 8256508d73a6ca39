// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package shm provides anonymous shared memory objects.
// An object is not visible in any filesystem; other processes can map it
// only if they inherit its descriptor.
package shm

import (
	"os"
	"runtime"
)

// MemoryObject represents an object which can be used to
// map shared memory regions into the process' address space.
type MemoryObject struct {
	*memoryObject
}

// NewMemoryObject creates a new anonymous shared memory object.
//   - name - a name of the object. it is used for debugging only and must not exceed 249 symbols.
//   - size - object size in bytes. the contents are zero-initialized.
func NewMemoryObject(name string, size int64) (*MemoryObject, error) {
	impl, err := newMemoryObject(name, size)
	if err != nil {
		return nil, err
	}
	return wrap(impl), nil
}

// OpenMemoryObject adopts a descriptor of a memory object created by another process
// and inherited by the current one. The object takes ownership of fd.
func OpenMemoryObject(fd int, name string) (*MemoryObject, error) {
	impl, err := openMemoryObject(fd, name)
	if err != nil {
		return nil, err
	}
	return wrap(impl), nil
}

func wrap(impl *memoryObject) *MemoryObject {
	result := &MemoryObject{impl}
	runtime.SetFinalizer(impl, func(memObject *memoryObject) {
		memObject.Close()
	})
	return result
}

// File returns the underlying file. It stays owned by the object,
// and is valid until Close is called.
func (obj *MemoryObject) File() *os.File {
	return obj.file
}
