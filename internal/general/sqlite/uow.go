package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"rider-tracking/internal/ports"
)

type ctxKey struct{}

var txKey = ctxKey{}

type unitOfWork struct {
	db *sql.DB
}

// NewUnitOfWork constructs a unit of work bound to db.
func NewUnitOfWork(db *sql.DB) ports.UnitOfWork {
	return &unitOfWork{db: db}
}

// WithinTx runs fn inside a transaction carried by ctx. Nested calls reuse the outer transaction.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := uow.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// TxFromContext extracts the current *sql.Tx from ctx if present.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// MustTxFromContext returns the active *sql.Tx or an error if none is found.
func MustTxFromContext(ctx context.Context) (*sql.Tx, error) {
	if tx, ok := TxFromContext(ctx); ok {
		return tx, nil
	}
	return nil, errors.New("no transaction in context: call this repository within UnitOfWork.WithinTx")
}
