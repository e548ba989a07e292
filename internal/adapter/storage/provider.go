package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// Provider hands out one dedicated connection per logical operation. Idle
// connections are not retained, so every release closes the connection.
type Provider struct {
	db      *sqlx.DB
	dialect Dialect
	timeout time.Duration
}

// Open prepares a provider for the configured store. No connection is made
// until the first Acquire.
func Open(cfg config.Store) (*Provider, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(d.driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	return NewProvider(db, d, cfg.ConnectTimeout), nil
}

func NewProvider(db *sqlx.DB, d Dialect, timeout time.Duration) *Provider {
	db.SetMaxIdleConns(0)
	return &Provider{db: db, dialect: d, timeout: timeout}
}

func (p *Provider) Dialect() Dialect { return p.dialect }

func (p *Provider) Close() error { return p.db.Close() }

// Acquire opens a connection and checks it is alive within the connect
// timeout. The caller owns the connection and must Close it.
func (p *Provider) Acquire(ctx context.Context) (*sqlx.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.db.Connx(actx)
	if err != nil {
		return nil, &domain.ConnectivityError{Err: err}
	}
	if err := conn.PingContext(actx); err != nil {
		conn.Close()
		return nil, &domain.ConnectivityError{Err: err}
	}
	return conn, nil
}

func (p *Provider) withConn(ctx context.Context, fn func(conn *sqlx.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(conn)
}

// withTx runs fn inside one transaction on a dedicated connection. Any error
// from fn rolls the whole unit back and is returned as is.
func (p *Provider) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return p.withConn(ctx, func(conn *sqlx.Conn) error {
		tx, err := conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
