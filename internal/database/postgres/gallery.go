package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/pgvector/pgvector-go"
)

// GalleryRepository provides PostgreSQL-backed storage for enrolled face samples.
type GalleryRepository struct {
	pool *Pool
}

// NewGalleryRepository creates a new PostgreSQL gallery repository.
func NewGalleryRepository(pool *Pool) *GalleryRepository {
	return &GalleryRepository{pool: pool}
}

// ListSamples returns every sample in scan order. COLLATE "C" keeps the
// identity order byte-wise regardless of the database locale.
func (r *GalleryRepository) ListSamples(ctx context.Context) ([]database.StoredSample, error) {
	query := `
		SELECT id, identity, external_id, sample_index, embedding::text, model, created_at
		FROM samples
		ORDER BY identity COLLATE "C", sample_index, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// sampleRows is the part of *sql.Rows that scanSamples reads.
type sampleRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanSamples collects every readable sample. A sample whose stored
// embedding cannot be parsed is logged and skipped so one corrupt row does
// not take matching down for everyone.
func scanSamples(rows sampleRows) ([]database.StoredSample, error) {
	var samples []database.StoredSample
	for rows.Next() {
		var sample database.StoredSample
		var embedding sql.NullString

		if err := rows.Scan(
			&sample.ID,
			&sample.Identity,
			&sample.ExternalID,
			&sample.SampleIndex,
			&embedding,
			&sample.Model,
			&sample.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}

		encoding, err := parseEmbedding(embedding)
		if err != nil {
			log.Printf("gallery: skipping sample %s of %q: %v", sample.ID, sample.Identity, err)
			continue
		}
		sample.Encoding = encoding
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// parseEmbedding decodes the text form of a vector column. NULL means no
// face was found at enrollment.
func parseEmbedding(embedding sql.NullString) ([]float32, error) {
	if !embedding.Valid {
		return nil, nil
	}
	var vec pgvector.Vector
	if err := vec.Parse(embedding.String); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return vec.Slice(), nil
}

// ListIdentities returns one summary per identity.
func (r *GalleryRepository) ListIdentities(ctx context.Context) ([]database.IdentitySummary, error) {
	query := `
		SELECT identity, MIN(external_id), COUNT(*), COUNT(embedding)
		FROM samples
		GROUP BY identity
		ORDER BY identity COLLATE "C"
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.IdentitySummary
	for rows.Next() {
		var s database.IdentitySummary
		if err := rows.Scan(&s.Identity, &s.ExternalID, &s.SampleCount, &s.FaceCount); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// CountSamples returns the total number of samples stored.
func (r *GalleryRepository) CountSamples(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return count, nil
}

// SaveSample stores a sample. Re-capturing the same sample index of an
// identity replaces the earlier capture.
func (r *GalleryRepository) SaveSample(ctx context.Context, sample database.StoredSample) error {
	var embedding any
	if sample.HasFace() {
		embedding = pgvector.NewVector(sample.Encoding)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO samples (id, identity, external_id, sample_index, embedding, model)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity, sample_index) DO UPDATE SET
			id = EXCLUDED.id,
			external_id = EXCLUDED.external_id,
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			created_at = NOW()
	`,
		sample.ID,
		sample.Identity,
		sample.ExternalID,
		sample.SampleIndex,
		embedding,
		sample.Model,
	)
	if err != nil {
		return fmt.Errorf("save sample: %w", err)
	}
	return nil
}

// DeleteIdentity removes every sample of an identity.
func (r *GalleryRepository) DeleteIdentity(ctx context.Context, identity string) (int, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM samples WHERE identity = $1", identity)
	if err != nil {
		return 0, fmt.Errorf("delete identity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}
