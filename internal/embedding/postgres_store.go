package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps vectors in a pgvector column next to the postings.
type PostgresStore struct {
	db pgQuerier
}

func NewPostgresStore(db pgQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetEmbeddings(ctx context.Context, ids []string) (map[string]Record, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres embedding store is not initialized")
	}

	result := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT job_posting_id::text, embedding, model_version, updated_at
		 FROM job_posting_embeddings
		 WHERE job_posting_id::text = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("getEmbeddings query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec       Record
			vec       pgvector.Vector
			updatedAt time.Time
		)
		if err := rows.Scan(&rec.JobPostingID, &vec, &rec.ModelVersion, &updatedAt); err != nil {
			return nil, fmt.Errorf("getEmbeddings scan: %w", err)
		}
		rec.Vector = vec.Slice()
		rec.UpdatedAt = updatedAt.UTC()
		result[rec.JobPostingID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getEmbeddings rows: %w", err)
	}

	return result, nil
}

func (s *PostgresStore) PutEmbedding(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return errors.New("postgres embedding store is not initialized")
	}
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO job_posting_embeddings (job_posting_id, embedding, model_version, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (job_posting_id) DO UPDATE
		 SET embedding = EXCLUDED.embedding,
		     model_version = EXCLUDED.model_version,
		     updated_at = EXCLUDED.updated_at`,
		rec.JobPostingID, pgvector.NewVector(rec.Vector), rec.ModelVersion, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("putEmbedding exec: %w", err)
	}
	return nil
}
