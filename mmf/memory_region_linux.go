// Copyright 2015 Aleksandr Demakin. All rights reserved.

//go:build linux

package mmf

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type memoryRegion struct {
	data []byte
}

func newMemoryRegion(obj Mappable, mode int, size int) (*memoryRegion, error) {
	prot, err := memProtFromMode(mode)
	if err != nil {
		return nil, errors.Wrap(err, "memory region flags check failed")
	}
	if err := checkMmapSize(obj, size); err != nil {
		return nil, errors.Wrap(err, "size check failed")
	}
	data, err := unix.Mmap(int(obj.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("mmap", err), "mmap failed")
	}
	return &memoryRegion{data: data}, nil
}

func (region *memoryRegion) Close() error {
	if region.data == nil {
		return nil
	}
	err := unix.Munmap(region.data)
	region.data = nil
	if err != nil {
		return errors.Wrap(os.NewSyscallError("munmap", err), "munmap failed")
	}
	return nil
}

func (region *memoryRegion) Data() []byte {
	return region.data
}

func (region *memoryRegion) Size() int {
	return len(region.data)
}

func memProtFromMode(mode int) (int, error) {
	switch mode {
	case MEM_READ_ONLY:
		return unix.PROT_READ, nil
	case MEM_READWRITE:
		return unix.PROT_READ | unix.PROT_WRITE, nil
	default:
		return 0, errors.Errorf("invalid memory region flags %d", mode)
	}
}
