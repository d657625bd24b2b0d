package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/ingest"
	"github.com/fusegraph/fusegraph/pkg/logger"
)

const IngestQueue = "ingest_queue"

// BatchMessage is the wire format of one ingestion batch on the work
// queue.
type BatchMessage struct {
	Message string       `json:"message"`
	Batch   common.Batch `json:"batch"`
}

// ProcessIngestMessage decodes and applies one queued batch. The
// returned error decides requeueing, so permanent failures (conflicts,
// malformed payloads) must not be retried by the caller; use
// errors.Is with common.ErrIngestionConflict to tell them apart.
func ProcessIngestMessage(ctx context.Context, coordinator *ingest.Coordinator, msg string) error {
	data := new(BatchMessage)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("%w: malformed batch message: %v", common.ErrIngestionConflict, err)
	}

	state, err := coordinator.Apply(ctx, data.Batch)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Ingest batch applied", "batch_key", data.Batch.Key, "state", string(state))
	return nil
}
