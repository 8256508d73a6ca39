// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"github.com/nxgtw/efdstream/channel"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidSlots is returned for a descriptor assignment table,
	// which has out of range or duplicate slots.
	ErrInvalidSlots = errors.New("invalid descriptor slots")
	// ErrAlreadySpawned is returned by Prepared.Spawn, if it has already been called.
	ErrAlreadySpawned = errors.New("child already spawned")
	// ErrClosed is returned by operations on a closed link or peer,
	// and by blocked operations, when the other side is gone.
	ErrClosed = channel.ErrClosed
	// ErrPayloadTooLarge is returned by Send, if the payload does not fit into the buffer.
	ErrPayloadTooLarge = channel.ErrPayloadTooLarge
	// ErrEmptyPayload is returned by Send for an empty payload.
	ErrEmptyPayload = channel.ErrEmptyPayload
)
