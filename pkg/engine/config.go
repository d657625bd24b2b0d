package engine

import (
	"time"

	"github.com/fusegraph/fusegraph/internal/util"
)

// FusionConfig holds the scoring weights of the fusion stage. The
// relative weighting between normalized similarity and convergence is a
// tunable policy, so it lives in configuration rather than code.
type FusionConfig struct {
	VectorWeight      float64
	ConvergenceWeight float64
}

// Budget bounds one retrieval fan-out: result counts per branch,
// traversal caps, and the per-branch timeout. The total wait of a
// fan-out is the branch timeout, not the sum over branches.
type Budget struct {
	TopK          int
	MaxDepth      int
	MaxNodes      int
	BranchTimeout time.Duration
}

// Config collects the engine tunables.
type Config struct {
	MaxSubIntents int

	Budget Budget
	Fusion FusionConfig

	MaxResults          int
	EvidenceTokenBudget int

	// Bounded retry for idempotent reads. Writes are never retried.
	ReadRetries int
	ReadBackoff time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxSubIntents: 4,
		Budget: Budget{
			TopK:          8,
			MaxDepth:      2,
			MaxNodes:      64,
			BranchTimeout: 5 * time.Second,
		},
		Fusion: FusionConfig{
			VectorWeight:      0.7,
			ConvergenceWeight: 0.3,
		},
		MaxResults:          10,
		EvidenceTokenBudget: 256,
		ReadRetries:         2,
		ReadBackoff:         100 * time.Millisecond,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by environment
// variables where set.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.MaxSubIntents = int(util.GetEnvNumeric("ENGINE_MAX_SUB_INTENTS", cfg.MaxSubIntents))
	cfg.Budget.TopK = int(util.GetEnvNumeric("ENGINE_TOP_K", cfg.Budget.TopK))
	cfg.Budget.MaxDepth = int(util.GetEnvNumeric("ENGINE_MAX_DEPTH", cfg.Budget.MaxDepth))
	cfg.Budget.MaxNodes = int(util.GetEnvNumeric("ENGINE_MAX_NODES", cfg.Budget.MaxNodes))
	cfg.Budget.BranchTimeout = time.Duration(util.GetEnvNumeric("ENGINE_BRANCH_TIMEOUT_MS", int(cfg.Budget.BranchTimeout.Milliseconds()))) * time.Millisecond
	cfg.Fusion.VectorWeight = util.GetEnvNumeric("ENGINE_FUSION_VECTOR_WEIGHT", 0)
	if cfg.Fusion.VectorWeight == 0 {
		cfg.Fusion.VectorWeight = DefaultConfig().Fusion.VectorWeight
	}
	cfg.Fusion.ConvergenceWeight = util.GetEnvNumeric("ENGINE_FUSION_CONVERGENCE_WEIGHT", 0)
	if cfg.Fusion.ConvergenceWeight == 0 {
		cfg.Fusion.ConvergenceWeight = DefaultConfig().Fusion.ConvergenceWeight
	}
	cfg.MaxResults = int(util.GetEnvNumeric("ENGINE_MAX_RESULTS", cfg.MaxResults))
	cfg.EvidenceTokenBudget = int(util.GetEnvNumeric("ENGINE_EVIDENCE_TOKEN_BUDGET", cfg.EvidenceTokenBudget))

	return cfg
}
