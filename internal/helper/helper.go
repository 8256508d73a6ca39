// Copyright 2016 Aleksandr Demakin. All rights reserved.

package helper

import (
	"github.com/nxgtw/efdstream/mmf"
	"github.com/nxgtw/efdstream/shm"

	"github.com/pkg/errors"
)

// CreateWritableRegion is a helper, which:
//   - creates an anonymous shared memory object of the given size.
//   - creates a mapping for the entire object with mmf.MEM_READWRITE flag.
//   - returns both, or closes everything on failure.
//
// The object is kept open, as its descriptor is passed to another process.
func CreateWritableRegion(name string, size int) (*shm.MemoryObject, *mmf.MemoryRegion, error) {
	if size <= 0 {
		return nil, nil, errors.Errorf("invalid region size %d", size)
	}
	obj, err := shm.NewMemoryObject(name, int64(size))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create shm object")
	}
	region, err := mmf.NewMemoryRegion(obj, mmf.MEM_READWRITE, size)
	if err != nil {
		obj.Close()
		return nil, nil, errors.Wrap(err, "failed to create shm region")
	}
	return obj, region, nil
}
