package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

const (
	defaultApplicationName = "salon-server"
	pingTimeout            = 5 * time.Second
)

type Config struct {
	URL             string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// SlowQuery logs queries slower than this at Warn. Zero disables it.
	SlowQuery time.Duration
	Logger    *slog.Logger
}

// Open connects through the pgx stdlib driver, tags the session with an
// application name and verifies the connection before handing back a bun.DB.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	connCfg, err := connConfig(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB := stdlib.OpenDB(*connCfg)
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	if cfg.Logger != nil {
		db.AddQueryHook(&queryLogHook{log: cfg.Logger, slow: cfg.SlowQuery})
	}
	return db, nil
}

func connConfig(cfg Config) (*pgx.ConnConfig, error) {
	connCfg, err := pgx.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	name := cfg.ApplicationName
	if name == "" {
		name = defaultApplicationName
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = make(map[string]string)
	}
	if _, ok := connCfg.RuntimeParams["application_name"]; !ok {
		connCfg.RuntimeParams["application_name"] = name
	}
	return connCfg, nil
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// queryLogHook logs failed queries at Error and slow ones at Warn. Missing
// rows are an expected outcome and stay silent.
type queryLogHook struct {
	log  *slog.Logger
	slow time.Duration
}

func (h *queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogHook) AfterQuery(ctx context.Context, e *bun.QueryEvent) {
	elapsed := time.Since(e.StartTime)
	switch {
	case e.Err != nil && !errors.Is(e.Err, sql.ErrNoRows):
		h.log.ErrorContext(ctx, "query failed",
			slog.String("query", truncate(e.Query, 200)),
			slog.Duration("elapsed", elapsed),
			slog.Any("err", e.Err),
		)
	case h.slow > 0 && elapsed >= h.slow:
		h.log.WarnContext(ctx, "slow query",
			slog.String("query", truncate(e.Query, 200)),
			slog.Duration("elapsed", elapsed),
		)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
