package hostagent

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/log"
)

// Config holds the host agent's wiring — the teacher's Worker Config
// shape, narrowed to this component's dependencies.
type Config struct {
	DeviceID     string
	Bus          *bus.Service
	Redis        *redis.Client
	Runner       JobRunner
	StatusDBPath string // bbolt file path for the local status cache
}

// Agent is the host agent daemon: the update_workload/send_status
// dispatcher plus the HC-HTTP-GW watcher, started and stopped
// together.
type Agent struct {
	dispatcher *Dispatcher
	gateway    *GatewayWatcher
	cache      *StatusCache
	logger     zerolog.Logger
}

// NewAgent builds an Agent from cfg, opening the local status cache.
func NewAgent(cfg Config) (*Agent, error) {
	cache, err := OpenStatusCache(cfg.StatusDBPath)
	if err != nil {
		return nil, err
	}

	return &Agent{
		dispatcher: NewDispatcher(cfg.Bus, cfg.DeviceID, cfg.Runner, cache),
		gateway:    NewGatewayWatcher(cfg.Bus, cfg.Redis, cfg.DeviceID),
		cache:      cache,
		logger:     log.WithHost(cfg.DeviceID),
	}, nil
}

// Start registers the dispatcher's consumers and starts the gateway
// watcher.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.dispatcher.Start(); err != nil {
		return err
	}
	if err := a.gateway.Start(ctx); err != nil {
		a.dispatcher.Stop()
		return err
	}
	a.logger.Info().Msg("host agent started")
	return nil
}

// Stop tears down the gateway watcher and dispatcher, then closes the
// local status cache.
func (a *Agent) Stop() {
	a.gateway.Stop()
	a.dispatcher.Stop()
	if err := a.cache.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close status cache")
	}
}
