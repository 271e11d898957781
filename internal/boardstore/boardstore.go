// Package boardstore opens the board store selected by the database configuration.
package boardstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-while/pugboard/internal/config"
	"github.com/go-while/pugboard/internal/database"
	"github.com/go-while/pugboard/internal/models"
	"github.com/go-while/pugboard/internal/pgstore"
	"github.com/go-while/pugboard/internal/web"
)

// Store is what the server and the operator tools need from either backend
type Store interface {
	web.BoardStore
	Stats(ctx context.Context) (*models.BoardStats, error)
	ResetBoard(ctx context.Context) error
	Close() error
}

// Open opens the sqlite3 or postgres store named by cfg.Driver
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite3":
		dbconfig := database.DefaultDBConfig()
		if cfg.Path != "" {
			dbconfig.Path = cfg.Path
		}
		zap.L().Info("[DB]: opening sqlite3 store", zap.String("path", dbconfig.Path))
		db, err := database.OpenDatabase(dbconfig)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		zap.L().Info("[DB]: opening postgres store")
		pg, err := pgstore.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
