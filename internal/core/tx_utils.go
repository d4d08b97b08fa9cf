package core

import (
	"context"

	"github.com/tmladenov/exchange/internal/port"
)

// withTx runs fn inside one repository transaction. Used for the multi-row
// settlement of a match: if the resting-order update, the excess insert or
// the ledger append fails, all of them roll back and the store stays in the
// pre-match state the cached book still describes.
func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) error {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
