package db

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redditetl/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Defaults()
	cfg.MySQLUser = "etl"
	cfg.MySQLPassword = "p@ss"
	cfg.MySQLHost = "db.internal"
	cfg.MySQLPort = 3307
	cfg.MySQLDB = "reddit"
	cfg.ConnectTimeout = 3 * time.Second

	mc, err := mysql.ParseDSN(DSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "etl", mc.User)
	assert.Equal(t, "p@ss", mc.Passwd)
	assert.Equal(t, "db.internal:3307", mc.Addr)
	assert.Equal(t, "reddit", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, time.UTC, mc.Loc)
	assert.Equal(t, 3*time.Second, mc.Timeout)
	assert.Equal(t, "'+00:00'", mc.Params["time_zone"])
}
