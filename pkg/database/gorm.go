package database

import (
	"errors"
	"log"
	"os"

	"ai-assistant-be/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var logLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func newLogger(cfg config.DatabaseConfig) logger.Interface {
	level, ok := logLevels[cfg.LogLevel]
	if !ok {
		level = logger.Warn
	}

	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             cfg.SlowThreshold,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true, // finders return nil, nil
			ParameterizedQueries:      true, // keep message text out of the log
			Colorful:                  false,
		},
	)
}

func configureConnectionPool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return nil
}

// NewGormDB opens the postgres pool described by cfg.
func NewGormDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Connection == "" {
		return nil, errors.New("DB_CONNECTION_STRING is not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.Connection), &gorm.Config{
		Logger: newLogger(cfg),
	})
	if err != nil {
		return nil, err
	}

	if err := configureConnectionPool(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}
