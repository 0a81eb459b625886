package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/studio-adp-api/pkg/config"
	"github.com/noah-isme/studio-adp-api/pkg/database"
	"github.com/noah-isme/studio-adp-api/pkg/logger"
)

// env holds what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &env{cfg: cfg, logger: logr}, nil
}

func (e *env) openDB() (*sqlx.DB, error) {
	db, err := database.NewPostgres(e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}
