// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package efdstream provides a bidirectional message channel between a process
// and one child process it spawns.
// Every direction carries one message at a time through an anonymous shared memory
// object and a pair of eventfd signals: the sender writes a payload into the shared buffer,
// signals its length, and waits for the receiver's acknowledgement.
// The child inherits all descriptors at fixed slots, which are passed to it
// on the command line (see SlotTable).
//
// The parent side is built in stages:
//
//	prepared, err := efdstream.NewBuilder("/path/to/child").Prepare()
//	link, err := prepared.Spawn(ctx)
//	defer link.Close()
//	err = link.Send([]byte("ping"))
//
// The child side adopts the inherited descriptors:
//
//	peer, err := efdstream.PeerFromArgs(os.Args[1:])
//	defer peer.Close()
//	err = peer.Listen(ctx, func(payload []byte) { ... })
//
// Linux only.
package efdstream
