package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/db"
	"github.com/jonathan/talent-pipeline/internal/logger"
	"github.com/jonathan/talent-pipeline/internal/notify"
)

// loadConfig reads and validates the configuration; the -d and -j flags override the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logDebug {
		cfg.Log.Debug = true
	}
	if logJSON {
		cfg.Log.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}

// openDB connects to Postgres, migrating first when configured to.
func openDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (*db.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (set DATABASE_URL)")
	}

	if cfg.Database.MigrateOnStart {
		v, err := db.MigrateUp(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		log.Info("database migrated", zap.Uint("version", v))
	}

	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// newDispatcher publishes to AMQP when a broker is configured and logs otherwise.
// The returned close function is never nil.
func newDispatcher(cfg *config.Config, log *zap.Logger) (notify.Dispatcher, func(), error) {
	if cfg.Notify.AMQPURL == "" {
		log.Info("no AMQP broker configured, notifications are logged")
		return notify.NewLogDispatcher(log), func() {}, nil
	}

	d, err := notify.NewAMQPDispatcher(cfg.Notify.AMQPURL, cfg.Notify.Queue, cfg.Notify.PublishTimeout, log)
	if err != nil {
		return nil, nil, err
	}
	return d, func() {
		if err := d.Close(); err != nil {
			log.Warn("failed to close AMQP dispatcher", zap.Error(err))
		}
	}, nil
}
