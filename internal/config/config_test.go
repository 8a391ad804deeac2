package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ETL_BASE_DIR", "ETL_RAW_DIR", "ETL_PROCESSED_DIR", "ETL_COMBINED_DIR", "ETL_WORKERS", "MYSQL_PORT"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, filepath.Join(".", "data", "raw"), c.RawDir)
	assert.Equal(t, filepath.Join(".", "data", "combined"), c.CombinedDir)
	assert.Equal(t, 0, c.Workers)
	assert.Equal(t, 3306, c.MySQLPort)
	assert.Equal(t, 30*time.Second, c.QueryTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ETL_BASE_DIR", "/srv/etl")
	t.Setenv("ETL_PROCESSED_DIR", "/mnt/fast/processed")
	t.Setenv("ETL_WORKERS", "3")
	t.Setenv("MYSQL_PORT", "not-a-number")

	c := FromEnv()
	assert.Equal(t, "/srv/etl/data/raw", c.RawDir)
	assert.Equal(t, "/mnt/fast/processed", c.ProcessedDir)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, 3306, c.MySQLPort)
}

func TestPaths(t *testing.T) {
	c := ForRoot("/base")
	assert.Equal(t, "/base/data/raw/r_politics_comments.jsonl", c.RawPath("r_politics_comments.jsonl"))
	assert.Equal(t, "/base/data/processed/a.csv", c.ProcessedPath("a.csv"))
	assert.Equal(t, "/base/data/combined/all.csv", c.CombinedPath("all.csv"))
	assert.Equal(t, "/elsewhere/x.jsonl", c.RawPath("/elsewhere/x.jsonl"))
}
