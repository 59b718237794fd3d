package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enterprise-bte/bte-engine/internal/config"
)

// Container holds the engine's database handles and cross-cutting
// infrastructure. Domain-specific repositories (TemplateStore, Registry,
// authz.Resolver, Visibility) are constructed directly over GormDB/CoreSQL
// by cmd/api/main.go rather than held here, since each is already a thin
// wrapper around repository.Repository[T].
type Container struct {
	GormDB *gorm.DB
	CoreSQL *sqlx.DB
	Redis  *redis.Client

	Audit *AuditInterceptor

	log zerolog.Logger
}

// New initializes all database connections and the audit interceptor.
func New(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	dm, err := NewDatabaseManager(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing database manager: %w", err)
	}

	c := &Container{
		GormDB:  dm.CoreGorm,
		CoreSQL: dm.CoreSQL,
		Redis:   dm.Redis,
		log:     log,
	}

	c.Audit = NewAuditInterceptor(dm.CoreGorm, log)

	log.Info().Msg("repository container initialized")
	return c, nil
}

// Close closes all underlying connections.
func (c *Container) Close() {
	if c.CoreSQL != nil {
		c.CoreSQL.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}

// Ping verifies the primary database connection is alive.
func (c *Container) Ping(ctx context.Context) error {
	sqlDB, err := c.GormDB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
