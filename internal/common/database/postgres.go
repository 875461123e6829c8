package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"academy-notifications/internal/common/config"

	"github.com/lib/pq"
)

type PostgresClient struct {
	DB  *sql.DB
	dsn string
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db, dsn: dsn}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// NewListener opens a dedicated LISTEN connection on the same DSN. The
// callback receives connection state changes (connected, dropped, reconnected).
func (c *PostgresClient) NewListener(minReconnect, maxReconnect time.Duration, onEvent func(pq.ListenerEventType, error)) *pq.Listener {
	return pq.NewListener(c.dsn, minReconnect, maxReconnect, onEvent)
}
