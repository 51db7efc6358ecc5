package config

import (
	"cmp"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var policyYAML []byte

// Ledger backends.
const (
	LedgerBackendCSV      = "csv"
	LedgerBackendPostgres = "postgres"
	LedgerBackendMariaDB  = "mariadb"
)

// ClockLayout is the textual time-of-day format used for thresholds and the ledger.
const ClockLayout = "15:04:05"

type Config struct {
	Embedding  EmbeddingConfig
	Database   DatabaseConfig
	Ledger     LedgerConfig
	Attendance AttendanceConfig
}

type EmbeddingConfig struct {
	URL          string // defaults to http://localhost:8000
	MaxImageSize int    // probe images are downscaled to fit (default 1920)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type LedgerConfig struct {
	Backend    string `yaml:"backend"` // csv, postgres or mariadb
	Path       string `yaml:"path"`    // csv ledger file
	MariaDBDSN string `yaml:"-"`       // e.g. attendance:secret@tcp(mariadb:3306)/attendance
}

type AttendanceConfig struct {
	LateThreshold  string  `yaml:"late_threshold"`  // HH:MM:SS, strictly later is late
	TotalStudents  int     `yaml:"total_students"`  // denominator of the attendance rate
	MatchTolerance float64 `yaml:"match_tolerance"` // maximum cosine distance for a match
	Timezone       string  `yaml:"-"`               // IANA name, empty means local time
}

// policy mirrors the layout of policy.yaml.
type policy struct {
	AttendanceConfig `yaml:",inline"`
	Ledger           LedgerConfig `yaml:"ledger"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the env var or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func loadPolicy() policy {
	var p policy
	if err := yaml.Unmarshal(policyYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return p
}

func Load() *Config {
	p := loadPolicy()

	return &Config{
		Embedding: EmbeddingConfig{
			URL:          os.Getenv("EMBEDDING_URL"),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Ledger: LedgerConfig{
			Backend:    envString("LEDGER_BACKEND", p.Ledger.Backend),
			Path:       envString("LEDGER_PATH", p.Ledger.Path),
			MariaDBDSN: os.Getenv("LEDGER_MARIADB_DSN"),
		},
		Attendance: AttendanceConfig{
			LateThreshold:  envString("ATTENDANCE_LATE_THRESHOLD", p.LateThreshold),
			TotalStudents:  envInt("ATTENDANCE_TOTAL_STUDENTS", p.TotalStudents),
			MatchTolerance: envFloat("MATCH_TOLERANCE", cmp.Or(p.MatchTolerance, constants.DefaultMatchTolerance)),
			Timezone:       os.Getenv("ATTENDANCE_TIMEZONE"),
		},
	}
}

// Validate reports the first malformed setting.
func (c *Config) Validate() error {
	if _, err := time.Parse(ClockLayout, c.Attendance.LateThreshold); err != nil {
		return fmt.Errorf("invalid late threshold %q: %w", c.Attendance.LateThreshold, err)
	}
	if _, err := c.Attendance.Location(); err != nil {
		return err
	}
	switch c.Ledger.Backend {
	case LedgerBackendCSV:
		if c.Ledger.Path == "" {
			return errors.New("LEDGER_PATH is required for the csv ledger")
		}
	case LedgerBackendPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required for the postgres ledger")
		}
	case LedgerBackendMariaDB:
		if c.Ledger.MariaDBDSN == "" {
			return errors.New("LEDGER_MARIADB_DSN is required for the mariadb ledger")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

// Location resolves the configured timezone, falling back to the process local zone.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
