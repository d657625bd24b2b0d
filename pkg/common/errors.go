package common

import (
	"errors"
	"time"
)

var (
	// ErrInvalidFilter is returned by the planner when a query carries
	// a filter on an unsupported field or with an inconsistent range.
	ErrInvalidFilter = errors.New("invalid query filter")

	// ErrEmbeddingUnavailable is returned when the embedding gateway
	// times out or errors. Planning never partially succeeds.
	ErrEmbeddingUnavailable = errors.New("embedding gateway unavailable")

	// ErrDimensionMismatch is returned by vector index inserts whose
	// vector length does not match the configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInsufficientEvidence is returned by the assembler when the
	// ranked result set is empty. The caller decides how to surface it.
	ErrInsufficientEvidence = errors.New("insufficient evidence")

	// ErrIngestionConflict signals that a batch key was reused with
	// different content. Conflicts are permanent and must not be
	// retried.
	ErrIngestionConflict = errors.New("ingestion batch key conflict")
)

// ReconciliationDebt records a compensation failure after a partial
// ingestion: the graph writes of a failed batch could not be undone and
// need out-of-band repair. Debts are never silently dropped.
type ReconciliationDebt struct {
	ID         string    `json:"id"`
	BatchKey   string    `json:"batch_key"`
	NodeIDs    []string  `json:"node_ids"`
	VectorIDs  []string  `json:"vector_ids,omitempty"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}
