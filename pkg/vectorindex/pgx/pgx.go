package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

// Index implements vectorindex.Index on PostgreSQL with pgvector,
// ranking by cosine similarity.
type Index struct {
	conn      pgxIConn
	dimension int
}

func New(conn pgxIConn, dimension int) *Index {
	return &Index{conn: conn, dimension: dimension}
}

func (i *Index) Dimension() int {
	return i.dimension
}

// Insert stores a record, rejecting mismatched dimensionality before
// touching the database so the index is left unchanged.
func (i *Index) Insert(ctx context.Context, rec common.VectorRecord) error {
	if len(rec.Embedding) != i.dimension {
		return common.ErrDimensionMismatch
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode vector metadata: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = i.conn.Exec(ctx, `
		INSERT INTO vector_records (id, embedding, ref_id, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET embedding  = EXCLUDED.embedding,
		    ref_id     = EXCLUDED.ref_id,
		    content    = EXCLUDED.content,
		    metadata   = EXCLUDED.metadata,
		    created_at = EXCLUDED.created_at
	`, rec.ID, pgvector.NewVector(rec.Embedding), rec.RefID, rec.Text, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert vector record %s: %w", rec.ID, err)
	}
	return nil
}

func (i *Index) Search(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, embedding, ref_id, content, metadata, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM vector_records
		WHERE 1=1
	`
	args := []any{pgvector.NewVector(vector)}
	argn := 2

	if len(filter.Sources) > 0 {
		query += fmt.Sprintf(` AND (ref_id = ANY($%d) OR metadata->>'source' = ANY($%d))`, argn, argn)
		args = append(args, filter.Sources)
		argn++
	}
	if filter.NotBefore != nil {
		query += fmt.Sprintf(` AND created_at >= $%d`, argn)
		args = append(args, *filter.NotBefore)
		argn++
	}
	if filter.NotAfter != nil {
		query += fmt.Sprintf(` AND created_at <= $%d`, argn)
		args = append(args, *filter.NotAfter)
		argn++
	}

	query += fmt.Sprintf(` ORDER BY embedding <=> $1, id LIMIT $%d`, argn)
	args = append(args, topK)

	rows, err := i.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector records: %w", err)
	}
	defer rows.Close()

	out := make([]vectorindex.Result, 0, topK)
	for rows.Next() {
		var r vectorindex.Result
		var vec pgvector.Vector
		var metadata []byte
		if err := rows.Scan(&r.Record.ID, &vec, &r.Record.RefID, &r.Record.Text, &metadata, &r.Record.CreatedAt, &r.Score); err != nil {
			return nil, err
		}
		r.ID = r.Record.ID
		r.Record.Embedding = vec.Slice()
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode vector metadata: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	_, err := i.conn.Exec(ctx, `DELETE FROM vector_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete vector records: %w", err)
	}
	return nil
}
