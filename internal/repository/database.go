package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/enterprise-bte/bte-engine/internal/config"
)

// DatabaseManager owns the engine's connections: one PostgreSQL database
// reachable both through GORM (domain writes) and sqlx (Dapper-style
// visibility queries), plus a Redis client backing the distributed
// workflow-instance lock.
type DatabaseManager struct {
	CoreGorm *gorm.DB
	CoreSQL  *sqlx.DB
	Redis    *redis.Client

	log zerolog.Logger
}

// NewDatabaseManager creates a DatabaseManager with all configured connections.
func NewDatabaseManager(cfg *config.Config, log zerolog.Logger) (*DatabaseManager, error) {
	dm := &DatabaseManager{log: log}

	gormDB, err := connectGormPostgres(cfg.Database.Core, log)
	if err != nil {
		return nil, fmt.Errorf("connecting GORM to core PostgreSQL: %w", err)
	}
	dm.CoreGorm = gormDB

	coreSQL, err := connectSqlxPostgres(cfg.Database.Core)
	if err != nil {
		return nil, fmt.Errorf("connecting sqlx to core PostgreSQL: %w", err)
	}
	dm.CoreSQL = coreSQL

	dm.Redis = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return dm, nil
}

// Close closes all database connections.
func (dm *DatabaseManager) Close() {
	if dm.CoreSQL != nil {
		dm.CoreSQL.Close()
	}
	if dm.Redis != nil {
		dm.Redis.Close()
	}
}

func connectGormPostgres(cfg config.PostgresConfig, log zerolog.Logger) (*gorm.DB, error) {
	dsn := cfg.DSN()

	logLevel := gormlogger.Warn
	if log.GetLevel() <= zerolog.DebugLevel {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info().Str("db", cfg.Database).Msg("connected GORM to PostgreSQL")
	return db, nil
}

func connectSqlxPostgres(cfg config.PostgresConfig) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", cfg.DSN())
}
