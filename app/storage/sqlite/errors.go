package sqlite

import (
	"errors"
	"fmt"

	"cleanrate/app/services"

	sqlitedrv "modernc.org/sqlite"
)

// SQLITE_BUSY; extended codes such as SQLITE_BUSY_SNAPSHOT (517) share the low byte.
const sqliteBusy = 5

// storeErr wraps a driver failure. Lock contention with another connection to the same
// file is transient and reported as a concurrency conflict so the engine retries it.
func storeErr(op string, err error) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %w", op, services.ErrConcurrencyConflict, err)
	}
	return fmt.Errorf("%s: %w: %w", op, services.ErrStore, err)
}

func isBusy(err error) bool {
	var sqlErr *sqlitedrv.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code()&0xff == sqliteBusy
}
