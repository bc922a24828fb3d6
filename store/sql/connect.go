package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ConnectConfig feeds the persistence client for both supported drivers.
type ConnectConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
	OtelName    string
}

func (c ConnectConfig) GetDebug() bool { return c.Debug }

func (c ConnectConfig) GetDriver() string { return c.Driver }

func (c ConnectConfig) GetServer() string { return c.DSN }

func (c ConnectConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ConnectConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelName) == "" {
		return "go-square"
	}
	return c.OtelName
}

// OpenPostgres opens a postgres-backed persistence client.
func OpenPostgres(cfg ConnectConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	cfg.Driver = "postgres"
	sqlDB, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	client, err := persistence.New(cfg, sqlDB, pgdialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: postgres persistence client: %w", err)
	}
	return client, nil
}

// OpenSQLite opens a sqlite-backed persistence client. In-memory DSNs get
// a single connection so shared-cache handles see one database.
func OpenSQLite(cfg ConnectConfig) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: sqlite dsn is required")
	}
	cfg.Driver = "sqlite3"
	sqlDB, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	if strings.Contains(cfg.DSN, "mode=memory") || strings.Contains(cfg.DSN, ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: sqlite persistence client: %w", err)
	}
	return client, nil
}
