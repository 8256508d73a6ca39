// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"flag"
	"strconv"

	"github.com/pkg/errors"
)

// SlotTable is the descriptor assignment table.
// It tells, at which descriptor numbers the child finds its resources.
// The table is passed by value and never changes after the link starts.
type SlotTable struct {
	P2CSend int
	P2CAck  int
	P2CMem  int
	C2PSend int
	C2PAck  int
	C2PMem  int
}

// DefaultSlots returns slots 3..8.
func DefaultSlots() SlotTable {
	return SlotsFrom(FirstSlot)
}

// SlotsFrom returns six consecutive slots starting with base.
func SlotsFrom(base int) SlotTable {
	return SlotTable{
		P2CSend: base,
		P2CAck:  base + 1,
		P2CMem:  base + 2,
		C2PSend: base + 3,
		C2PAck:  base + 4,
		C2PMem:  base + 5,
	}
}

func (t SlotTable) slots() []int {
	return []int{t.P2CSend, t.P2CAck, t.P2CMem, t.C2PSend, t.C2PAck, t.C2PMem}
}

// Validate checks that all slots are in [FirstSlot, MaxSlot] and pairwise distinct.
func (t SlotTable) Validate() error {
	seen := make(map[int]struct{}, 6)
	for _, slot := range t.slots() {
		if slot < FirstSlot || slot > MaxSlot {
			return errors.Wrapf(ErrInvalidSlots, "slot %d is out of range [%d, %d]", slot, FirstSlot, MaxSlot)
		}
		if _, ok := seen[slot]; ok {
			return errors.Wrapf(ErrInvalidSlots, "slot %d is used twice", slot)
		}
		seen[slot] = struct{}{}
	}
	return nil
}

// Args renders the table and the buffer size as the child's command-line arguments.
func (t SlotTable) Args(size int) []string {
	itoa := strconv.Itoa
	return []string{
		"-" + FlagP2CSend, itoa(t.P2CSend),
		"-" + FlagP2CAck, itoa(t.P2CAck),
		"-" + FlagP2CMem, itoa(t.P2CMem),
		"-" + FlagC2PSend, itoa(t.C2PSend),
		"-" + FlagC2PAck, itoa(t.C2PAck),
		"-" + FlagC2PMem, itoa(t.C2PMem),
		"-" + FlagShmSize, itoa(size),
	}
}

// BindFlags registers the child's command-line contract in fs.
// Current values of table and size are used as defaults.
func BindFlags(fs *flag.FlagSet, table *SlotTable, size *int) {
	fs.IntVar(&table.P2CSend, FlagP2CSend, table.P2CSend, "descriptor of the parent-to-child data signal")
	fs.IntVar(&table.P2CAck, FlagP2CAck, table.P2CAck, "descriptor of the parent-to-child ack signal")
	fs.IntVar(&table.P2CMem, FlagP2CMem, table.P2CMem, "descriptor of the parent-to-child shared memory")
	fs.IntVar(&table.C2PSend, FlagC2PSend, table.C2PSend, "descriptor of the child-to-parent data signal")
	fs.IntVar(&table.C2PAck, FlagC2PAck, table.C2PAck, "descriptor of the child-to-parent ack signal")
	fs.IntVar(&table.C2PMem, FlagC2PMem, table.C2PMem, "descriptor of the child-to-parent shared memory")
	fs.IntVar(size, FlagShmSize, *size, "shared buffer size in bytes")
}
