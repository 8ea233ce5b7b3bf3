package main

import (
	"fmt"

	"github.com/agentdeck/agentdeck/internal/common/config"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/session/store"
)

// storage bundles the collaborator store repository with its cleanup.
type storage struct {
	Repo     *store.Repository
	cleanups []func()
}

func provideStorage(cfg *config.Config, log *logger.Logger) (*storage, error) {
	repo, cleanup, err := store.Provide(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open collaborator store: %w", err)
	}
	return &storage{
		Repo:     repo,
		cleanups: []func(){cleanup},
	}, nil
}

// Close runs the cleanups in reverse registration order.
func (s *storage) Close() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
}
