package ingest

import (
	"context"
	"sync"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// DebtStore records reconciliation debts: partial state left behind
// when a failed batch could not be fully compensated. Operators drain
// this list out of band.
type DebtStore interface {
	Record(ctx context.Context, debt common.ReconciliationDebt) error
	List(ctx context.Context) ([]common.ReconciliationDebt, error)
}

// MemoryDebtStore keeps debts in process memory. Suitable for tests
// and single-node deployments.
type MemoryDebtStore struct {
	mu    sync.Mutex
	debts []common.ReconciliationDebt
}

func NewMemoryDebtStore() *MemoryDebtStore {
	return &MemoryDebtStore{}
}

func (s *MemoryDebtStore) Record(_ context.Context, debt common.ReconciliationDebt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debts = append(s.debts, debt)
	return nil
}

func (s *MemoryDebtStore) List(_ context.Context) ([]common.ReconciliationDebt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.ReconciliationDebt, len(s.debts))
	copy(out, s.debts)
	return out, nil
}
