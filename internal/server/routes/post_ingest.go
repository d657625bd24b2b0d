package routes

import (
	"encoding/json"
	"net/http"

	"github.com/fusegraph/fusegraph/internal/queue"
	"github.com/fusegraph/fusegraph/internal/server/middleware"
	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// IngestHandler accepts one ingestion batch and hands it to the work
// queue. Application happens asynchronously in the worker; the
// response only acknowledges acceptance.
func IngestHandler(c echo.Context) error {
	type ingestRequest struct {
		Key     string                `json:"key"`
		Nodes   []common.Node         `json:"nodes"`
		Edges   []common.Edge         `json:"edges"`
		Vectors []common.VectorRecord `json:"vectors"`
	}

	type ingestResponse struct {
		Message  string `json:"message"`
		BatchKey string `json:"batch_key,omitempty"`
		State    string `json:"state,omitempty"`
	}

	data := new(ingestRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if len(data.Nodes) == 0 && len(data.Edges) == 0 && len(data.Vectors) == 0 {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Batch is empty",
		})
	}

	// Callers that want replay protection supply their own key; one is
	// generated otherwise.
	key := data.Key
	if key == "" {
		key = uuid.NewString()
	}

	msg := queue.BatchMessage{
		Message: "Ingest batch accepted",
		Batch: common.Batch{
			Key:     key,
			Nodes:   data.Nodes,
			Edges:   data.Edges,
			Vectors: data.Vectors,
		},
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Error("[Ingest] Failed to marshal batch message", "batch_key", key, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.IngestQueue, msgBytes); err != nil {
		logger.Error("[Ingest] Failed to publish batch", "batch_key", key, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message:  "Batch accepted",
		BatchKey: key,
		State:    string(common.BatchPending),
	})
}
