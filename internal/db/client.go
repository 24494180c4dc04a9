// Package db provides SurrealDB database connectivity with auto-reconnect support.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections to prevent HTTP/2 ALPN negotiation.
	// WebSocket upgrade requires HTTP/1.1 semantics which fail under HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Client wraps SurrealDB connection with auto-reconnect.
type Client struct {
	conn    *rews.Connection[*gorillaws.Connection]
	db      *surrealdb.DB
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Collector
}

// NewClient creates a new SurrealDB client with auto-reconnecting WebSocket.
// log and mc may be nil.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger, mc *metrics.Collector) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	// Bridge our handler into the SDK so its reconnect logs share our outputs
	sdkLogger := logger.New(log.Handler())

	// Use surrealcbor for CBOR encoding/decoding (handles SurrealDB custom tags)
	codec := surrealcbor.New()

	// gorillaws adds /rpc itself
	baseURL := strings.TrimSuffix(cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			ws := gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			})
			return ws, nil
		},
		5*time.Second,
		codec,
		sdkLogger,
	)

	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = 1 * time.Second
	retryer.MaxDelay = 30 * time.Second
	retryer.Multiplier = 2.0
	retryer.MaxRetries = 10
	conn.Retryer = retryer

	log.Info("connecting to SurrealDB", "url", cfg.URL)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}

	log.Info("authenticating", "user", cfg.Username, "auth_level", cfg.AuthLevel)
	if cfg.AuthLevel == "database" {
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Namespace: cfg.Namespace,
			Database:  cfg.Database,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
	} else {
		_, err = db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin: %w", err)
	}

	log.Info("selecting namespace/database", "namespace", cfg.Namespace, "database", cfg.Database)
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use: %w", err)
	}

	log.Info("SurrealDB connection established")
	return &Client{conn: conn, db: db, cfg: cfg, log: log, metrics: mc}, nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing SurrealDB connection")
	return c.conn.Close(ctx)
}

// InitSchema defines tables, fields and the per-language full-text indexes.
// Safe to run repeatedly.
func (c *Client) InitSchema(ctx context.Context, languages []string) error {
	sql, err := SchemaSQL(languages)
	if err != nil {
		return err
	}
	c.log.Info("initializing database schema", "languages", languages)
	if _, err := surrealdb.Query[any](ctx, c.db, sql, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	c.log.Info("schema initialization complete")
	return nil
}

// Query executes one SurrealQL statement (or a statement block) and returns
// the rows of the last statement.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]any) ([]map[string]any, error) {
	return query[map[string]any](ctx, c, "query", sql, vars)
}

// WipeData deletes all data from the database while preserving schema.
// Use for testing only.
func (c *Client) WipeData(ctx context.Context) error {
	c.log.Warn("wiping all data from database")

	// Edges first so no relation outlives its endpoints
	tables := []string{"appears_in", "action", "resource", "entity"}

	for _, table := range tables {
		q := fmt.Sprintf("DELETE %s", table)
		if _, err := surrealdb.Query[any](ctx, c.db, q, nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		c.log.Info("deleted table data", "table", table)
	}

	c.log.Info("database wipe complete")
	return nil
}

// query runs sql, records its timing and returns the rows of the last
// statement that produced a value. Intermediate statements should RETURN NONE.
func query[T any](ctx context.Context, c *Client, op, sql string, vars map[string]any) ([]T, error) {
	start := time.Now()
	results, err := surrealdb.Query[[]T](ctx, c.db, sql, vars)
	c.metrics.Track(metrics.OpDBQuery, start, &err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, wrapQueryError(err))
	}
	return lastResult(results), nil
}

func lastResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil {
		return nil
	}
	for i := len(*results) - 1; i >= 0; i-- {
		if r := (*results)[i].Result; r != nil {
			return r
		}
	}
	return nil
}
