// Package lock wraps MySQL named locks so two loaders never write the same
// table at once.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrHeld is returned when another session still holds the lock after the
// wait timeout.
var ErrHeld = errors.New("lock: held by another session")

// Key is the lock name used for loading table.
func Key(table string) string { return "redditetl_load_" + table }

// Lock is a held GET_LOCK. MySQL ties named locks to the session that took
// them, so the lock keeps its own connection out of the pool until Release.
type Lock struct {
	conn *sql.Conn
	key  string
}

// Get takes a dedicated connection and waits up to timeoutSeconds for key.
func Get(ctx context.Context, db *sql.DB, key string, timeoutSeconds int) (*Lock, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var res sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", key, timeoutSeconds).Scan(&res); err != nil {
		conn.Close()
		return nil, fmt.Errorf("GET_LOCK %s: %w", key, err)
	}
	if !res.Valid || res.Int64 != 1 {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrHeld, key)
	}
	return &Lock{conn: conn, key: key}, nil
}

// Release frees the lock on the session that took it and returns the
// connection to the pool.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", l.key)
	if cerr := l.conn.Close(); err == nil {
		err = cerr
	}
	l.conn = nil
	return err
}
