// Package app wires the storage and AI adapters from environment
// configuration. Both the API server and the worker use the same
// wiring so they always agree on adapters and dimensions.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fusegraph/fusegraph/internal/util"
	"github.com/fusegraph/fusegraph/pkg/embed"
	oemb "github.com/fusegraph/fusegraph/pkg/embed/ollama"
	gemb "github.com/fusegraph/fusegraph/pkg/embed/openai"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
	graphmem "github.com/fusegraph/fusegraph/pkg/graphstore/memory"
	graphpgx "github.com/fusegraph/fusegraph/pkg/graphstore/pgx"
	"github.com/fusegraph/fusegraph/pkg/ingest"
	"github.com/fusegraph/fusegraph/pkg/logger"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"
	vecmem "github.com/fusegraph/fusegraph/pkg/vectorindex/memory"
	vecpgx "github.com/fusegraph/fusegraph/pkg/vectorindex/pgx"
	vecqdrant "github.com/fusegraph/fusegraph/pkg/vectorindex/qdrant"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Stores bundles the persistence adapters of one process.
type Stores struct {
	Graph graphstore.Store
	Index vectorindex.Index
	Debts ingest.DebtStore

	// Pool is nil when running on the in-memory adapters.
	Pool *pgxpool.Pool
}

func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// NewEmbedGateway builds the embedding gateway selected by AI_ADAPTER.
func NewEmbedGateway() (embed.Gateway, error) {
	dimension := int(util.GetEnvNumeric("AI_EMBED_DIMENSION", 1536))
	maxConcurrent := int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15))

	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		return oemb.NewGateway(oemb.NewGatewayParams{
			Model:     util.GetEnv("AI_EMBED_MODEL"),
			Dimension: dimension,

			BaseURL: util.GetEnv("AI_EMBED_URL"),
			ApiKey:  util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: maxConcurrent,
		})
	default:
		return gemb.NewGateway(gemb.NewGatewayParams{
			Model:     util.GetEnv("AI_EMBED_MODEL"),
			Dimension: dimension,

			BaseURL: util.GetEnv("AI_EMBED_URL"),
			ApiKey:  util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: maxConcurrent,
		})
	}
}

// NewStores builds the graph store, vector index and debt store
// selected by STORE_ADAPTER ("postgres" or "memory") and VECTOR_ADAPTER
// ("pgvector", "qdrant" or "memory").
func NewStores(ctx context.Context, dimension int) (*Stores, error) {
	stores := &Stores{}

	switch util.GetEnvString("STORE_ADAPTER", "postgres") {
	case "memory":
		stores.Graph = graphmem.New()
		stores.Debts = ingest.NewMemoryDebtStore()
	default:
		poolCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse database url: %w", err)
		}
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stores.Pool = pool
		stores.Graph = graphpgx.New(pool)
		stores.Debts = ingest.NewPgxDebtStore(pool)
	}

	switch util.GetEnvString("VECTOR_ADAPTER", "pgvector") {
	case "memory":
		stores.Index = vecmem.New(dimension)
	case "qdrant":
		index, err := vecqdrant.NewIndex(ctx, vecqdrant.NewIndexParams{
			Host:       util.GetEnv("QDRANT_HOST"),
			Port:       int(util.GetEnvNumeric("QDRANT_PORT", 6334)),
			Collection: util.GetEnvString("QDRANT_COLLECTION", "fusegraph"),
			Dimension:  dimension,
		})
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		stores.Index = index
	default:
		if stores.Pool == nil {
			stores.Close()
			return nil, fmt.Errorf("pgvector index requires STORE_ADAPTER=postgres")
		}
		stores.Index = vecpgx.New(stores.Pool, dimension)
	}

	return stores, nil
}

// RunMigrations applies pending schema migrations. It is a no-op when
// running on the in-memory adapters.
func RunMigrations() error {
	if util.GetEnvString("STORE_ADAPTER", "postgres") == "memory" {
		return nil
	}

	sourceURL := util.GetEnvString("MIGRATIONS_URL", "file://migrations")
	m, err := migrate.New(sourceURL, util.GetEnv("DATABASE_URL"))
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer m.Close()

	start := time.Now()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("Migrations applied", "duration", time.Since(start).String())
	return nil
}
