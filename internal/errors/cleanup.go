// Package errors provides cleanup helpers that log instead of dropping
// errors from deferred calls.
package errors

import (
	"database/sql"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure with msg.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRollback rolls tx back and logs a failure. sql.ErrTxDone, returned
// after a successful commit, is ignored.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("transaction rollback failed")
	}
}
