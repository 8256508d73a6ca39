// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import "time"

// Observer is notified about the traffic of a direction.
// Implementations must be safe for concurrent use.
type Observer interface {
	MessageSent(direction string, size int, elapsed time.Duration)
	MessageReceived(direction string, size int)
	ProtocolViolation(direction string, length uint64)
}

type nopObserver struct{}

func (nopObserver) MessageSent(string, int, time.Duration) {}
func (nopObserver) MessageReceived(string, int)            {}
func (nopObserver) ProtocolViolation(string, uint64)       {}
