package render

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pixor/internal/model"
)

// service defines the interface for processing enqueued render jobs.
type service interface {
	ProcessJob(ctx context.Context, j model.RenderJob) error
}

// RequestedHandler handles Kafka messages for requested render jobs.
// It relies on a service that runs the render pipeline.
type RequestedHandler struct {
	service service
}

// NewRequestedHandler creates a new handler with the given service.
func NewRequestedHandler(s service) *RequestedHandler {
	return &RequestedHandler{service: s}
}

// Handle processes a Kafka message containing a render job. It unmarshals
// the message, runs the pipeline via the service, and logs the result.
func (h *RequestedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var j model.RenderJob
	if err := json.Unmarshal(msg.Value, &j); err != nil {
		return fmt.Errorf("unmarshal render job: %w", err)
	}

	if err := h.service.ProcessJob(ctx, j); err != nil {
		return fmt.Errorf("process render job: %w", err)
	}

	zlog.Logger.Printf("render job processed: %s", j.ID)

	return nil
}
