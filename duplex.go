// Copyright 2016 Aleksandr Demakin. All rights reserved.

package efdstream

import (
	"context"

	"github.com/nxgtw/efdstream/channel"

	"golang.org/x/sync/errgroup"
)

// Run runs both directions of an endpoint concurrently:
// one task sends every payload from outbound, the other passes every incoming message to handler.
// When one of the tasks fails or ctx is done, the other one is stopped,
// and the first error is returned. Closing outbound stops only the sending task.
// As the receiving task never ends by itself, Run always returns an error:
// one satisfying errors.Is(err, ErrClosed), when the transport is gone, or a context error.
func Run(ctx context.Context, sender *channel.Sender, receiver *channel.Receiver, outbound <-chan []byte, handler channel.Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return receiver.Listen(gctx, handler)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case payload, ok := <-outbound:
				if !ok {
					return nil
				}
				if err := sender.SendContext(gctx, payload); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}
