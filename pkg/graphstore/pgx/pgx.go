package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/graphstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements graphstore.Store on PostgreSQL. Traversal reuses the
// shared bounded BFS, fetching one frontier level per query.
type Store struct {
	conn pgxIConn
}

func New(conn pgxIConn) *Store {
	return &Store{conn: conn}
}

func (s *Store) UpsertNode(ctx context.Context, node common.Node) error {
	attrs, err := json.Marshal(node.Attrs)
	if err != nil {
		return fmt.Errorf("failed to encode node attrs: %w", err)
	}
	updatedAt := node.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO graph_nodes (id, node_type, attrs, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET node_type = EXCLUDED.node_type,
		    attrs      = EXCLUDED.attrs,
		    updated_at = EXCLUDED.updated_at
	`, node.ID, node.Type, attrs, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", node.ID, err)
	}
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, edge common.Edge) error {
	attrs, err := json.Marshal(edge.Attrs)
	if err != nil {
		return fmt.Errorf("failed to encode edge attrs: %w", err)
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO graph_edges (from_id, to_id, relation, attrs)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_id, to_id, relation) DO UPDATE
		SET attrs = EXCLUDED.attrs
	`, edge.From, edge.To, edge.Relation, attrs)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: foreign_key_violation - an endpoint node is missing.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return graphstore.ErrMissingEndpoint
		}
		return fmt.Errorf("failed to upsert edge %s-[%s]->%s: %w", edge.From, edge.Relation, edge.To, err)
	}
	return nil
}

func (s *Store) Traverse(ctx context.Context, seeds []string, relationFilter []string, maxDepth, maxNodes int) (*graphstore.Subgraph, error) {
	return graphstore.Traverse(ctx, s.fetchEdges, s.fetchNodes, seeds, relationFilter, maxDepth, maxNodes)
}

func (s *Store) fetchEdges(ctx context.Context, frontier []string, relationFilter []string) ([]common.Edge, error) {
	query := `
		SELECT from_id, to_id, relation, attrs
		FROM graph_edges
		WHERE (from_id = ANY($1) OR to_id = ANY($1))
	`
	args := []any{frontier}
	if len(relationFilter) > 0 {
		query += ` AND relation = ANY($2)`
		args = append(args, relationFilter)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frontier edges: %w", err)
	}
	defer rows.Close()

	out := make([]common.Edge, 0)
	for rows.Next() {
		var e common.Edge
		var attrs []byte
		if err := rows.Scan(&e.From, &e.To, &e.Relation, &attrs); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.Attrs); err != nil {
				return nil, fmt.Errorf("failed to decode edge attrs: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) fetchNodes(ctx context.Context, ids []string) ([]common.Node, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, node_type, attrs, updated_at
		FROM graph_nodes
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

func (s *Store) MatchNodes(ctx context.Context, text string, limit int) ([]common.Node, error) {
	if limit <= 0 {
		limit = 10
	}

	// Nodes whose name occurs as a substring of the query text; longest
	// names first so the most specific entities win.
	rows, err := s.conn.Query(ctx, `
		SELECT id, node_type, attrs, updated_at
		FROM graph_nodes
		WHERE position(lower(coalesce(attrs->>'name', id)) in lower($1)) > 0
		ORDER BY length(coalesce(attrs->>'name', id)) DESC, id
		LIMIT $2
	`, text, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to match nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `DELETE FROM graph_edges WHERE from_id = ANY($1) OR to_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	_, err = tx.Exec(ctx, `DELETE FROM graph_nodes WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Stats(ctx context.Context) (graphstore.Stats, error) {
	var stats graphstore.Stats
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM graph_nodes),
			(SELECT count(*) FROM graph_edges)
	`).Scan(&stats.Nodes, &stats.Edges)
	if err != nil {
		return graphstore.Stats{}, fmt.Errorf("failed to query graph stats: %w", err)
	}
	return stats, nil
}

func scanNodes(rows pgx.Rows) ([]common.Node, error) {
	out := make([]common.Node, 0)
	for rows.Next() {
		var n common.Node
		var attrs []byte
		if err := rows.Scan(&n.ID, &n.Type, &attrs, &n.UpdatedAt); err != nil {
			return nil, err
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &n.Attrs); err != nil {
				return nil, fmt.Errorf("failed to decode node attrs: %w", err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
