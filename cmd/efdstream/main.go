// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command efdstream demonstrates a channel between a parent and a child process.
// The parent starts the child (itself by default), sends numbered pings,
// and prints the replies; the child echoes every message back.
//
//	efdstream -count 10 -interval 100ms
//
// Settings are read from EFDSTREAM_* environment variables,
// command-line flags take precedence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nxgtw/efdstream"
	"github.com/nxgtw/efdstream/internal/config"
	"github.com/nxgtw/efdstream/internal/logging"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	modeParent = "parent"
	modeChild  = "child"
)

type params struct {
	mode     string
	child    string
	count    int
	interval time.Duration
	slots    efdstream.SlotTable
	size     int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "efdstream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	p := params{slots: cfg.Slots(), size: cfg.ShmSize}
	flag.StringVar(&p.mode, "mode", modeParent, "operation mode: parent or child")
	flag.StringVar(&p.child, "child", os.Args[0], "child program, started in child mode")
	flag.IntVar(&p.count, "count", 10, "number of pings to send")
	flag.DurationVar(&p.interval, "interval", 100*time.Millisecond, "interval between pings")
	efdstream.BindFlags(flag.CommandLine, &p.slots, &p.size)
	flag.Parse()

	logger, err := logging.NewOrDefault(cfg.Logging())
	if err != nil {
		logger.Warn("falling back to the default logger", zap.Error(err))
	}
	defer logger.Sync()
	logger = logger.With(zap.String("mode", p.mode), zap.Int("pid", os.Getpid()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch p.mode {
	case modeParent:
		return runParent(ctx, cfg, p, logger)
	case modeChild:
		return runChild(ctx, p, logger)
	default:
		return errors.Errorf("unknown mode %q", p.mode)
	}
}

func runParent(ctx context.Context, cfg *config.Config, p params, logger *zap.Logger) error {
	// flags override the environment.
	opts := append(cfg.Options(),
		efdstream.WithSlots(p.slots),
		efdstream.WithBufferSize(p.size),
		efdstream.WithArgs("-mode", modeChild),
		efdstream.WithLogger(logger),
	)
	prepared, err := efdstream.NewBuilder(p.child, opts...).Prepare()
	if err != nil {
		return err
	}
	link, err := prepared.Spawn(ctx)
	if err != nil {
		return err
	}
	defer link.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	outbound := make(chan []byte)
	go func() {
		defer close(outbound)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for i := 0; i < p.count; i++ {
			select {
			case outbound <- []byte(fmt.Sprintf("ping %d", i)):
			case <-ctx.Done():
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	replies := 0
	err = link.Run(ctx, outbound, func(payload []byte) {
		fmt.Printf("reply: %s\n", payload)
		if replies++; replies == p.count {
			cancel()
		}
	})
	if replies == p.count {
		logger.Info("all replies received", zap.Int("count", replies))
		return nil
	}
	return err
}

func runChild(ctx context.Context, p params, logger *zap.Logger) error {
	peer, err := efdstream.NewPeer(p.slots, p.size, efdstream.WithLogger(logger))
	if err != nil {
		return err
	}
	defer peer.Close()
	outbound := make(chan []byte, 1)
	err = peer.Run(ctx, outbound, func(payload []byte) {
		select {
		case outbound <- append([]byte("echo: "), payload...):
		case <-ctx.Done():
		}
	})
	if errors.Is(err, efdstream.ErrClosed) || ctx.Err() != nil {
		logger.Info("child done", zap.Error(err))
		return nil
	}
	return err
}
