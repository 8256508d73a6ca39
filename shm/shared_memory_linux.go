// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package shm

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// linux/memfd.h: MFD_NAME_MAX_LEN
	maxNameLen = 249
)

type memoryObject struct {
	file      *os.File
	closeOnce sync.Once
	closeErr  error
}

func newMemoryObject(name string, size int64) (*memoryObject, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, errors.Errorf("invalid memory object size %d", size)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("memfd_create", err), "failed to create memory object")
	}
	impl := &memoryObject{file: os.NewFile(uintptr(fd), name)}
	if err := impl.Truncate(size); err != nil {
		impl.Close()
		return nil, errors.Wrap(err, "failed to resize memory object")
	}
	return impl, nil
}

func openMemoryObject(fd int, name string) (*memoryObject, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, errors.Wrapf(os.NewSyscallError("fstat", err), "invalid memory object descriptor %d", fd)
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFREG {
		return nil, errors.Errorf("descriptor %d is not a memory object", fd)
	}
	// the object must not leak into processes spawned by the current one.
	unix.CloseOnExec(fd)
	return &memoryObject{file: os.NewFile(uintptr(fd), name)}, nil
}

func checkName(name string) error {
	if len(name) == 0 || len(name) > maxNameLen {
		return errors.New("invalid memory object name")
	}
	return nil
}

func (obj *memoryObject) Name() string {
	return obj.file.Name()
}

func (obj *memoryObject) Close() error {
	obj.closeOnce.Do(func() {
		obj.closeErr = obj.file.Close()
	})
	return obj.closeErr
}

func (obj *memoryObject) Truncate(size int64) error {
	return obj.file.Truncate(size)
}

func (obj *memoryObject) Size() int64 {
	fileInfo, err := obj.file.Stat()
	if err != nil {
		return 0
	}
	return fileInfo.Size()
}

func (obj *memoryObject) Stat() (os.FileInfo, error) {
	return obj.file.Stat()
}

func (obj *memoryObject) Fd() uintptr {
	return obj.file.Fd()
}
