// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	ipcsync "github.com/nxgtw/efdstream/sync"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned when the transport was closed by either side.
	// It terminates Listen.
	ErrClosed = ipcsync.ErrClosed
	// ErrPayloadTooLarge is returned by Send, if the payload does not fit into the buffer.
	ErrPayloadTooLarge = errors.New("payload exceeds buffer capacity")
	// ErrEmptyPayload is returned by Send for an empty payload,
	// as a zero length cannot be signaled.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrAlreadyAttached is returned by Attach, if the buffer has already been mapped.
	ErrAlreadyAttached = errors.New("buffer already attached")
	// ErrReadOnly is returned on attempts to write into a read-only buffer.
	ErrReadOnly = errors.New("buffer is read-only")
)
