package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/csvledger"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/fingerprint"
)

// app holds the stores and clients a command needs. Call close when done.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	pool    *postgres.Pool
	gallery *postgres.GalleryRepository
	ledger  database.LedgerWriter
	closers []func() error
}

// loadConfig loads and validates the environment configuration.
func loadConfig() (*config.Config, *time.Location, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}

// openGallery connects to PostgreSQL, applies migrations and opens the gallery.
func (a *app) openGallery(ctx context.Context) error {
	if a.gallery != nil {
		return nil
	}
	if a.cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if a.pool == nil {
		pool, err := postgres.Open(ctx, &a.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
	}
	a.gallery = postgres.NewGalleryRepository(a.pool)
	return nil
}

// openLedger opens the configured ledger backend.
func (a *app) openLedger(ctx context.Context) error {
	if a.ledger != nil {
		return nil
	}
	switch a.cfg.Ledger.Backend {
	case config.LedgerBackendCSV:
		l, err := csvledger.Open(a.cfg.Ledger.Path, a.loc)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		a.ledger = l
	case config.LedgerBackendPostgres:
		if a.pool == nil {
			pool, err := postgres.Open(ctx, &a.cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
			}
			a.pool = pool
			a.closers = append(a.closers, pool.Close)
		}
		a.ledger = postgres.NewLedgerRepository(a.pool, a.loc)
	case config.LedgerBackendMariaDB:
		pool, err := mariadb.NewPool(a.cfg.Ledger.MariaDBDSN)
		if err != nil {
			return fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare MariaDB ledger: %w", err)
		}
		a.ledger = mariadb.NewLedgerRepository(pool, a.loc)
	default:
		return fmt.Errorf("unknown ledger backend %q", a.cfg.Ledger.Backend)
	}
	return nil
}

// newApp loads configuration and opens the requested stores.
func newApp(ctx context.Context, withGallery, withLedger bool) (*app, error) {
	cfg, loc, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, loc: loc}
	if withGallery {
		if err := a.openGallery(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	if withLedger {
		if err := a.openLedger(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close failed: %v\n", err)
		}
	}
	a.closers = nil
}

func (a *app) encoder() *fingerprint.EmbeddingClient {
	return fingerprint.NewEmbeddingClient(a.cfg.Embedding.URL, a.cfg.Embedding.MaxImageSize)
}

func (a *app) lateThreshold() (attendance.TimeOfDay, error) {
	return attendance.ParseTimeOfDay(a.cfg.Attendance.LateThreshold)
}

func (a *app) reporter() *attendance.Reporter {
	return attendance.NewReporter(a.ledger, a.cfg.Attendance.TotalStudents, a.loc)
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
