package database

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// TxRunner executes units of work inside a single transaction.
type TxRunner struct {
	db  *sql.DB
	log *zap.Logger
}

func NewTxRunner(db *sql.DB, log *zap.Logger) *TxRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &TxRunner{db: db, log: log}
}

// DB exposes the pool for read-only queries outside a transaction.
func (r *TxRunner) DB() *sql.DB { return r.db }

// InTx runs fn in a transaction and commits when it returns nil. A deadlock
// or lock wait timeout rolls back and re-runs fn exactly once, so fn must
// re-read everything it decides on.
func (r *TxRunner) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	err := r.run(ctx, fn)
	if err != nil && IsLockContention(err) {
		r.log.Warn("lock contention, retrying transaction once", zap.Error(err))
		err = r.run(ctx, fn)
	}
	return err
}

func (r *TxRunner) run(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
