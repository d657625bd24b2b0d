package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
	"github.com/fusegraph/fusegraph/pkg/logger"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Coordinator applies ingestion batches across the graph store and the
// vector index. Graph writes always land before vector writes, so a
// vector record never points at an entity that does not exist yet.
// There is no cross-store transaction: after a partial application the
// just-applied writes are deleted again best-effort, and whatever the
// compensation could not remove is recorded as reconciliation debt.
type Coordinator struct {
	graph graphstore.Store
	index vectorindex.Index
	debts DebtStore
	locks *keyLock

	mu      sync.Mutex
	batches map[string]*batchRecord
}

type batchRecord struct {
	state       common.BatchState
	fingerprint string
}

func NewCoordinator(graph graphstore.Store, index vectorindex.Index, debts DebtStore) *Coordinator {
	if debts == nil {
		debts = NewMemoryDebtStore()
	}
	return &Coordinator{
		graph:   graph,
		index:   index,
		debts:   debts,
		locks:   newKeyLock(),
		batches: make(map[string]*batchRecord),
	}
}

// Apply runs one batch through the state machine and returns its final
// state. Replaying a committed batch with identical content is a no-op;
// replaying a key with different content is ErrIngestionConflict.
// Batches whose entity-key sets overlap are serialized; disjoint
// batches run concurrently.
func (c *Coordinator) Apply(ctx context.Context, batch common.Batch) (common.BatchState, error) {
	if batch.Key == "" {
		return common.BatchFailed, fmt.Errorf("%w: batch has no idempotency key", common.ErrIngestionConflict)
	}

	fingerprint, err := fingerprintBatch(batch)
	if err != nil {
		return common.BatchFailed, err
	}

	keys := batch.EntityKeys()
	c.locks.acquire(keys)
	defer c.locks.release(keys)

	c.mu.Lock()
	record, seen := c.batches[batch.Key]
	if seen {
		if record.fingerprint != fingerprint {
			c.mu.Unlock()
			return common.BatchFailed, fmt.Errorf("%w: key %s was used with different content", common.ErrIngestionConflict, batch.Key)
		}
		if record.state == common.BatchCommitted {
			c.mu.Unlock()
			logger.Debug("[Ingest] Replay of committed batch ignored", "batch_key", batch.Key)
			return common.BatchCommitted, nil
		}
		// Same content after a failure: the retry runs the machine
		// again from the start.
	}
	record = &batchRecord{state: common.BatchPending, fingerprint: fingerprint}
	c.batches[batch.Key] = record
	c.mu.Unlock()

	state, err := c.run(ctx, batch)

	c.mu.Lock()
	record.state = state
	c.mu.Unlock()

	return state, err
}

// State reports the recorded state of a batch key, if any.
func (c *Coordinator) State(key string) (common.BatchState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.batches[key]
	if !ok {
		return "", false
	}
	return record.state, true
}

func (c *Coordinator) run(ctx context.Context, batch common.Batch) (common.BatchState, error) {
	appliedNodes, err := c.applyGraph(ctx, batch)
	if err != nil {
		leftoverNodes := c.compensateNodes(ctx, appliedNodes)
		c.recordDebt(ctx, batch.Key, leftoverNodes, nil, fmt.Sprintf("graph phase failed: %v", err))
		return common.BatchFailed, fmt.Errorf("graph phase of batch %s failed: %w", batch.Key, err)
	}

	appliedVectors, err := c.applyVectors(ctx, batch)
	if err != nil {
		leftoverVectors := c.compensateVectors(ctx, appliedVectors)
		leftoverNodes := c.compensateNodes(ctx, appliedNodes)
		c.recordDebt(ctx, batch.Key, leftoverNodes, leftoverVectors, fmt.Sprintf("vector phase failed: %v", err))
		return common.BatchFailed, fmt.Errorf("vector phase of batch %s failed: %w", batch.Key, err)
	}

	logger.Info("[Ingest] Batch committed", "batch_key", batch.Key, "nodes", len(batch.Nodes), "edges", len(batch.Edges), "vectors", len(batch.Vectors))
	return common.BatchCommitted, nil
}

// applyGraph upserts all nodes, then all edges, so edge endpoints exist
// before the edges referencing them. It returns the node ids written so
// far even on error.
func (c *Coordinator) applyGraph(ctx context.Context, batch common.Batch) ([]string, error) {
	applied := make([]string, 0, len(batch.Nodes))
	for _, node := range batch.Nodes {
		if err := c.graph.UpsertNode(ctx, node); err != nil {
			return applied, err
		}
		applied = append(applied, node.ID)
	}
	for _, edge := range batch.Edges {
		if err := c.graph.UpsertEdge(ctx, edge); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (c *Coordinator) applyVectors(ctx context.Context, batch common.Batch) ([]string, error) {
	applied := make([]string, 0, len(batch.Vectors))
	for _, rec := range batch.Vectors {
		if err := c.index.Insert(ctx, rec); err != nil {
			return applied, err
		}
		applied = append(applied, rec.ID)
	}
	return applied, nil
}

// compensateVectors deletes the vectors a failed batch already wrote.
// Whatever cannot be cleaned up is returned for the debt record.
func (c *Coordinator) compensateVectors(ctx context.Context, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	if err := c.index.Delete(ctx, ids); err != nil {
		logger.Warn("[Ingest] Vector compensation failed", "vectors", len(ids), "err", err)
		return ids
	}
	return nil
}

// compensateNodes deletes the nodes a failed batch already wrote, which
// cascades to the edges between them. The deletion is best-effort; ids
// that could not be removed are returned for the debt record.
func (c *Coordinator) compensateNodes(ctx context.Context, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	if err := c.graph.DeleteNodes(ctx, ids); err != nil {
		logger.Warn("[Ingest] Graph compensation failed", "nodes", len(ids), "err", err)
		return ids
	}
	return nil
}

func (c *Coordinator) recordDebt(ctx context.Context, batchKey string, nodeIDs, vectorIDs []string, reason string) {
	if len(nodeIDs) == 0 && len(vectorIDs) == 0 {
		return
	}

	id, err := gonanoid.New()
	if err != nil {
		logger.Error("[Ingest] Failed to generate debt id", "batch_key", batchKey, "err", err)
		return
	}

	debt := common.ReconciliationDebt{
		ID:         id,
		BatchKey:   batchKey,
		NodeIDs:    nodeIDs,
		VectorIDs:  vectorIDs,
		Reason:     reason,
		RecordedAt: time.Now().UTC(),
	}
	if err := c.debts.Record(ctx, debt); err != nil {
		logger.Error("[Ingest] Failed to record reconciliation debt", "batch_key", batchKey, "err", err)
		return
	}
	logger.Warn("[Ingest] Reconciliation debt recorded", "batch_key", batchKey, "nodes", len(nodeIDs), "vectors", len(vectorIDs), "reason", reason)
}

// fingerprintBatch hashes the batch content. Replays must match it
// exactly to count as the same batch.
func fingerprintBatch(batch common.Batch) (string, error) {
	encoded, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("failed to encode batch %s: %w", batch.Key, err)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
