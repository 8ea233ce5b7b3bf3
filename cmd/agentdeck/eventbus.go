package main

import (
	"github.com/agentdeck/agentdeck/internal/common/config"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/events"
)

// provideEventBus selects the bus implementation from configuration: NATS
// when a URL is set, the in-process bus otherwise.
func provideEventBus(cfg *config.Config, log *logger.Logger) (*events.ProvidedBus, func() error, error) {
	provided, cleanup, err := events.Provide(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if provided.NATS != nil {
		log.Info("using NATS event bus")
	} else {
		log.Info("using in-memory event bus")
	}
	return provided, cleanup, nil
}
