// Copyright 2015 Aleksandr Demakin. All rights reserved.

package efdstream

import "time"

const (
	// DefaultBufferSize is the default capacity of a direction's shared buffer.
	DefaultBufferSize = 4096
	// FirstSlot is the lowest descriptor slot available for assignment.
	// Slots 0, 1, 2 stay the child's standard streams.
	FirstSlot = 3
	// MaxSlot is the highest descriptor slot available for assignment.
	MaxSlot = 1024
	// DefaultTerminateTimeout is how long Link.Close waits for the child
	// to exit after SIGTERM before killing it.
	DefaultTerminateTimeout = 2 * time.Second
)

// command-line flags of the child contract
const (
	FlagP2CSend = "fd-p2c-send"
	FlagP2CAck  = "fd-p2c-ack"
	FlagP2CMem  = "fd-p2c-shm"
	FlagC2PSend = "fd-c2p-send"
	FlagC2PAck  = "fd-c2p-ack"
	FlagC2PMem  = "fd-c2p-shm"
	FlagShmSize = "shm-size"
)

// direction labels
const (
	DirectionP2C = "p2c"
	DirectionC2P = "c2p"
)
