package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/agentdeck/agentdeck/internal/common/config"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/db"
)

// Provide opens the configured database and returns the repository plus a
// cleanup function. SQLite is the default driver.
func Provide(cfg *config.Config, log *logger.Logger) (*Repository, func(), error) {
	var (
		pool *db.Pool
		err  error
	)
	switch cfg.Database.Driver {
	case "", "sqlite", "sqlite3":
		path := cfg.Database.Path
		if path == "" {
			path = defaultSQLitePath()
		}
		pool, err = db.OpenSQLite(path)
		if err == nil {
			log.Info("opened sqlite collaborator store", zap.String("path", path))
		}
	case "postgres":
		pool, err = db.OpenPostgres(cfg.Database.DSN(), cfg.Database.MaxConns, 0)
		if err == nil {
			log.Info("opened postgres collaborator store",
				zap.String("host", cfg.Database.Host),
				zap.String("database", cfg.Database.DBName))
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	repo, err := NewRepository(pool)
	if err != nil {
		_ = pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := pool.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}
	return repo, cleanup, nil
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "agentdeck.db"
	}
	return filepath.Join(home, ".agentdeck", "agentdeck.db")
}
