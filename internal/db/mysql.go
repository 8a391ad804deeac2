package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"redditetl/internal/config"
)

// DSN builds the driver DSN from cfg. Sessions run in UTC and multi-row
// inserts are allowed to be large.
func DSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.MySQLUser
	mc.Passwd = cfg.MySQLPassword
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.MySQLHost, cfg.MySQLPort)
	mc.DBName = cfg.MySQLDB
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Collation = "utf8mb4_unicode_ci"
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.QueryTimeout
	mc.WriteTimeout = cfg.QueryTimeout
	mc.Params = map[string]string{"time_zone": "'+00:00'"}
	return mc.FormatDSN()
}

// Open connects, tunes the pool and pings within the query timeout.
func Open(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping %s: %w", cfg.MySQLHost, err)
	}
	return db, nil
}

// CurrentSchema returns DATABASE() for the connection.
func CurrentSchema(ctx context.Context, conn *sql.DB) (string, error) {
	var s sql.NullString
	if err := conn.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&s); err != nil {
		return "", err
	}
	if !s.Valid || s.String == "" {
		return "", fmt.Errorf("no database selected")
	}
	return s.String, nil
}
