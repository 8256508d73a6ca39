// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package channel implements one direction of a shared memory message channel.
//
// A direction consists of a memory object, mapped by both processes,
// and two signals. The sender copies a payload to the beginning of the
// shared buffer and raises the data signal by the payload length. The receiver
// waits for the data signal, consumes exactly that many bytes and raises
// the ack signal by one. The sender does not return until the ack is observed,
// so there is at most one message in flight per direction, and the buffer
// never has more than one writer.
//
// Two directions share nothing and compose into a bidirectional link.
package channel
