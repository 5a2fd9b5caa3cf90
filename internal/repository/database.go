package repository

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Global error declarations.
var (
	ErrNoSession   = errors.New("journal entry without session identity")
	ErrEmptyTicker = errors.New("journal entry without ticker")
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Database struct that holds the database connection used by the journal.
type Database struct {
	journal execer
	conn    *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Database{
		journal: conn,
		conn:    conn,
	}, nil
}

func (db *Database) Close() {
	if db.conn != nil {
		db.conn.Close()
	}
}
