package repository

import (
	"context"
	"fmt"
	"time"

	"portfolioclient/types"

	"github.com/shopspring/decimal"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trade_requests (
	id             BIGSERIAL PRIMARY KEY,
	identity       TEXT        NOT NULL,
	routing_suffix TEXT        NOT NULL,
	action         TEXT        NOT NULL,
	ticker         TEXT        NOT NULL,
	shares         BIGINT      NOT NULL,
	ref_price      NUMERIC     NOT NULL,
	submitted_at   TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	id             BIGSERIAL PRIMARY KEY,
	identity       TEXT        NOT NULL,
	routing_suffix TEXT        NOT NULL,
	text           TEXT        NOT NULL,
	received_at    TIMESTAMPTZ NOT NULL
);`

const insertTradeSQL = `INSERT INTO trade_requests (identity, routing_suffix, action, ticker, shares, ref_price, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertNotificationSQL = `INSERT INTO notifications (identity, routing_suffix, text, received_at)
VALUES ($1, $2, $3, $4)`

var now = time.Now

// EnsureSchema creates the journal tables when they are missing.
func (db *Database) EnsureSchema(ctx context.Context) error {
	if _, err := db.journal.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// RecordTrade appends a submitted trade request with the price shown when it was sent.
func (db *Database) RecordTrade(ctx context.Context, session types.Session, req types.TradeRequest, refPrice decimal.Decimal) error {
	if session.Identity == "" {
		return ErrNoSession
	}
	if req.Ticker == "" {
		return ErrEmptyTicker
	}
	_, err := db.journal.Exec(ctx, insertTradeSQL,
		session.Identity, session.RoutingSuffix, string(req.Action), req.Ticker, req.Shares, refPrice, now().UTC())
	if err != nil {
		return fmt.Errorf("record trade %s %s: %w", req.Action, req.Ticker, err)
	}
	return nil
}

func (db *Database) RecordNotification(ctx context.Context, session types.Session, text string) error {
	if session.Identity == "" {
		return ErrNoSession
	}
	if _, err := db.journal.Exec(ctx, insertNotificationSQL, session.Identity, session.RoutingSuffix, text, now().UTC()); err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}
