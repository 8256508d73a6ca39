// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

// Assignment pairs a resource with the descriptor slot
// it must occupy in the child.
type Assignment struct {
	File *os.File
	Slot int
}

// LaunchSpec describes a child to start.
type LaunchSpec struct {
	Program     string
	Args        []string
	Assignments []Assignment
}

// Process is a started child.
type Process interface {
	Pid() int
	// Wait waits for the process to exit. It is called exactly once.
	Wait() error
	Signal(sig os.Signal) error
	Kill() error
}

// Launcher starts a child process with its resources at the assigned slots.
// If Launch fails, no child program runs.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// assignSlots returns the list of extra files for a child process,
// where the file at index i becomes descriptor FirstSlot+i, and nil entries are closed.
func assignSlots(assignments []Assignment) ([]*os.File, error) {
	top := FirstSlot - 1
	for _, a := range assignments {
		if a.File == nil {
			return nil, errors.Errorf("no file for slot %d", a.Slot)
		}
		if a.Slot < FirstSlot || a.Slot > MaxSlot {
			return nil, errors.Wrapf(ErrInvalidSlots, "slot %d is out of range [%d, %d]", a.Slot, FirstSlot, MaxSlot)
		}
		if a.Slot > top {
			top = a.Slot
		}
	}
	files := make([]*os.File, top-FirstSlot+1)
	for _, a := range assignments {
		idx := a.Slot - FirstSlot
		if files[idx] != nil {
			return nil, errors.Wrapf(ErrInvalidSlots, "slot %d is used twice", a.Slot)
		}
		files[idx] = a.File
	}
	return files, nil
}
