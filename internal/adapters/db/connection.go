package db

import (
	"context"
	"database/sql"
	"fmt"

	"voltbid-auction-service/internal/config"
	"voltbid-auction-service/internal/ports/outbound"

	_ "github.com/lib/pq"
)

// Connection represents a database connection
type Connection struct {
	db *sql.DB
}

// Tx wraps a *sql.Tx behind the outbound.Tx port so application
// services stay free of database/sql.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the wrapped transaction
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback rolls the wrapped transaction back
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// sqlTx unwraps an outbound.Tx handed back to a db adapter. A nil
// handle means "run outside any transaction".
func sqlTx(tx outbound.Tx) *sql.Tx {
	if tx == nil {
		return nil
	}
	return tx.(*Tx).tx
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewConnection creates a new database connection
func NewConnection(config *config.Config) (*Connection, error) {
	db, err := sql.Open("postgres", config.Database.GetConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &Connection{db: db}, nil
}

// GetDB returns the underlying sql.DB instance
func (client *Connection) GetDB() *sql.DB {
	return client.db
}

// Close closes the database connection
func (client *Connection) Close() error {
	return client.db.Close()
}

// on computes the execution target for a repository call: the caller's
// transaction when one is supplied, the pool otherwise.
func (client *Connection) on(tx outbound.Tx) querier {
	if t := sqlTx(tx); t != nil {
		return t
	}
	return client.db
}

// BeginTx starts a new database transaction
func (client *Connection) BeginTx(ctx context.Context) (outbound.Tx, error) {
	tx, err := client.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// WithinTx executes fn within a transaction, implementing
// outbound.TxManager. Row locks taken through the tx are released on
// commit or rollback.
func (client *Connection) WithinTx(ctx context.Context, fn func(tx outbound.Tx) error) error {
	tx, err := client.BeginTx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx failed: %v, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
