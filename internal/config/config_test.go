package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"LEDGER_BACKEND", "LEDGER_PATH", "ATTENDANCE_LATE_THRESHOLD",
		"ATTENDANCE_TOTAL_STUDENTS", "MATCH_TOLERANCE", "ATTENDANCE_TIMEZONE",
		"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS", "EMBEDDING_MAX_IMAGE_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Attendance.LateThreshold != "09:00:00" {
		t.Errorf("expected late threshold 09:00:00, got %q", cfg.Attendance.LateThreshold)
	}
	if cfg.Attendance.TotalStudents != 30 {
		t.Errorf("expected 30 students, got %d", cfg.Attendance.TotalStudents)
	}
	if cfg.Attendance.MatchTolerance != 0.5 {
		t.Errorf("expected tolerance 0.5, got %v", cfg.Attendance.MatchTolerance)
	}
	if cfg.Ledger.Backend != LedgerBackendCSV {
		t.Errorf("expected csv backend, got %q", cfg.Ledger.Backend)
	}
	if cfg.Ledger.Path != "attendance_records/attendance.csv" {
		t.Errorf("unexpected ledger path %q", cfg.Ledger.Path)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %d/%d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Embedding.MaxImageSize != 1920 {
		t.Errorf("expected max image size 1920, got %d", cfg.Embedding.MaxImageSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", "postgres")
	t.Setenv("ATTENDANCE_LATE_THRESHOLD", "08:30:00")
	t.Setenv("ATTENDANCE_TOTAL_STUDENTS", "42")
	t.Setenv("MATCH_TOLERANCE", "0.35")
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")

	cfg := Load()

	if cfg.Ledger.Backend != LedgerBackendPostgres {
		t.Errorf("expected postgres backend, got %q", cfg.Ledger.Backend)
	}
	if cfg.Attendance.LateThreshold != "08:30:00" {
		t.Errorf("expected 08:30:00, got %q", cfg.Attendance.LateThreshold)
	}
	if cfg.Attendance.TotalStudents != 42 {
		t.Errorf("expected 42, got %d", cfg.Attendance.TotalStudents)
	}
	if cfg.Attendance.MatchTolerance != 0.35 {
		t.Errorf("expected 0.35, got %v", cfg.Attendance.MatchTolerance)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"empty", "", 7},
		{"not a number", "abc", 7},
		{"negative", "-3", 7},
		{"zero", "0", 7},
		{"valid", "12", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 7); got != tt.want {
				t.Errorf("envInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Ledger:     LedgerConfig{Backend: LedgerBackendCSV, Path: "ledger.csv"},
			Attendance: AttendanceConfig{LateThreshold: "09:00:00", TotalStudents: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid csv", func(c *Config) {}, false},
		{"bad threshold", func(c *Config) { c.Attendance.LateThreshold = "9am" }, true},
		{"bad timezone", func(c *Config) { c.Attendance.Timezone = "Mars/Olympus" }, true},
		{"csv without path", func(c *Config) { c.Ledger.Path = "" }, true},
		{"postgres without url", func(c *Config) { c.Ledger.Backend = LedgerBackendPostgres }, true},
		{"mariadb without dsn", func(c *Config) { c.Ledger.Backend = LedgerBackendMariaDB }, true},
		{"mariadb with dsn", func(c *Config) {
			c.Ledger.Backend = LedgerBackendMariaDB
			c.Ledger.MariaDBDSN = "u:p@tcp(db:3306)/att"
		}, false},
		{"unknown backend", func(c *Config) { c.Ledger.Backend = "sqlite" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := AttendanceConfig{}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != time.Local {
		t.Errorf("expected time.Local, got %v", loc)
	}

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("expected UTC, got %v", loc)
	}
}
