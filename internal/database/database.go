// Package database provides MySQL database connection management for tablediff.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/GannettDigital/tablediff/internal/config"
)

// Manager handles database connections to the two tables being compared.
type Manager struct {
	Left   *sql.DB
	Right  *sql.DB
	config *config.Config
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Connect establishes connections to both configured databases.
func (m *Manager) Connect(ctx context.Context) error {
	var err error

	m.Left, err = m.connectWithRetry(ctx, "left", &m.config.Left)
	if err != nil {
		return fmt.Errorf("failed to connect to left database: %w", err)
	}

	m.Right, err = m.connectWithRetry(ctx, "right", &m.config.Right)
	if err != nil {
		m.Left.Close()
		return fmt.Errorf("failed to connect to right database: %w", err)
	}

	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, name string, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = m.connect(cfg)
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

// connect creates a database connection.
func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=true&multiStatements=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes both database connections gracefully.
func (m *Manager) Close() error {
	var errs []error

	if m.Right != nil {
		if err := m.Right.Close(); err != nil {
			errs = append(errs, fmt.Errorf("right close: %w", err))
		}
	}

	if m.Left != nil {
		if err := m.Left.Close(); err != nil {
			errs = append(errs, fmt.Errorf("left close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}
	return nil
}

// Ping verifies both connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Left != nil {
		if err := m.Left.PingContext(ctx); err != nil {
			return fmt.Errorf("left ping failed: %w", err)
		}
	}

	if m.Right != nil {
		if err := m.Right.PingContext(ctx); err != nil {
			return fmt.Errorf("right ping failed: %w", err)
		}
	}

	return nil
}
