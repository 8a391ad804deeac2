package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is passed explicitly into every stage; components never read the
// environment themselves.
type Config struct {
	BaseDir      string
	RawDir       string
	ProcessedDir string
	CombinedDir  string
	Workers      int
	PlanPath     string

	LogLevel  string
	LogFormat string

	MySQLHost      string
	MySQLPort      int
	MySQLUser      string
	MySQLPassword  string
	MySQLDB        string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	base := getenv("ETL_BASE_DIR", ".")
	return &Config{
		BaseDir:      base,
		RawDir:       getenv("ETL_RAW_DIR", filepath.Join(base, "data", "raw")),
		ProcessedDir: getenv("ETL_PROCESSED_DIR", filepath.Join(base, "data", "processed")),
		CombinedDir:  getenv("ETL_COMBINED_DIR", filepath.Join(base, "data", "combined")),
		Workers:      getenvInt("ETL_WORKERS", 0),
		PlanPath:     getenv("ETL_PLAN", ""),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "console"),

		MySQLHost:      getenv("MYSQL_HOST", "127.0.0.1"),
		MySQLPort:      getenvInt("MYSQL_PORT", 3306),
		MySQLUser:      getenv("MYSQL_USER", "root"),
		MySQLPassword:  getenv("MYSQL_PASSWORD", ""),
		MySQLDB:        getenv("MYSQL_DB", "reddit"),
		ConnectTimeout: time.Duration(getenvInt("DB_CONNECT_TIMEOUT", 5)) * time.Second,
		QueryTimeout:   time.Duration(getenvInt("DB_QUERY_TIMEOUT", 30)) * time.Second,
	}
}

// ForRoot lays out the default raw/processed/combined tree under base.
func ForRoot(base string) *Config {
	c := Defaults()
	c.BaseDir = base
	c.RawDir = filepath.Join(base, "data", "raw")
	c.ProcessedDir = filepath.Join(base, "data", "processed")
	c.CombinedDir = filepath.Join(base, "data", "combined")
	return c
}

// Defaults is the zero-environment configuration.
func Defaults() *Config {
	return &Config{
		BaseDir:        ".",
		RawDir:         filepath.Join("data", "raw"),
		ProcessedDir:   filepath.Join("data", "processed"),
		CombinedDir:    filepath.Join("data", "combined"),
		LogLevel:       "info",
		LogFormat:      "console",
		MySQLHost:      "127.0.0.1",
		MySQLPort:      3306,
		MySQLUser:      "root",
		MySQLDB:        "reddit",
		ConnectTimeout: 5 * time.Second,
		QueryTimeout:   30 * time.Second,
	}
}

// RawPath resolves a source name against RawDir (absolute paths pass through).
func (c *Config) RawPath(name string) string { return under(c.RawDir, name) }

// ProcessedPath resolves a conversion output or merge input.
func (c *Config) ProcessedPath(name string) string { return under(c.ProcessedDir, name) }

// CombinedPath resolves a merge output.
func (c *Config) CombinedPath(name string) string { return under(c.CombinedDir, name) }

func under(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
