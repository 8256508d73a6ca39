// Copyright 2016 Aleksandr Demakin. All rights reserved.

package channel

import (
	ipcsync "github.com/nxgtw/efdstream/sync"

	"go.uber.org/zap"
)

// Config describes one side of a direction.
type Config struct {
	// Direction is a label used in logs and metrics, like "p2c".
	Direction string
	// Data carries payload lengths from the sender to the receiver.
	Data *ipcsync.Signal
	// Ack carries acknowledgements from the receiver to the sender.
	Ack *ipcsync.Signal
	// Mapping is the direction's shared buffer.
	Mapping *Mapping
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Observer defaults to a no-op observer.
	Observer Observer
}

func (cfg Config) logger() *zap.Logger {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("direction", cfg.Direction))
}

func (cfg Config) observer() Observer {
	if cfg.Observer == nil {
		return nopObserver{}
	}
	return cfg.Observer
}
