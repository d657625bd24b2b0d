package ingest

import (
	"context"
	"fmt"

	"github.com/fusegraph/fusegraph/pkg/common"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
}

// PgxDebtStore persists reconciliation debts in PostgreSQL so they
// survive restarts.
type PgxDebtStore struct {
	conn pgxIConn
}

func NewPgxDebtStore(conn pgxIConn) *PgxDebtStore {
	return &PgxDebtStore{conn: conn}
}

func (s *PgxDebtStore) Record(ctx context.Context, debt common.ReconciliationDebt) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO reconciliation_debts (id, batch_key, node_ids, vector_ids, reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, debt.ID, debt.BatchKey, debt.NodeIDs, debt.VectorIDs, debt.Reason, debt.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record debt for batch %s: %w", debt.BatchKey, err)
	}
	return nil
}

func (s *PgxDebtStore) List(ctx context.Context) ([]common.ReconciliationDebt, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, batch_key, node_ids, vector_ids, reason, recorded_at
		FROM reconciliation_debts
		ORDER BY recorded_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list debts: %w", err)
	}
	defer rows.Close()

	out := make([]common.ReconciliationDebt, 0)
	for rows.Next() {
		var d common.ReconciliationDebt
		if err := rows.Scan(&d.ID, &d.BatchKey, &d.NodeIDs, &d.VectorIDs, &d.Reason, &d.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
