package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/pixor/internal/config"
	"github.com/aliskhannn/pixor/internal/model"
)

// Producer represents a Kafka producer for render jobs.
type Producer struct {
	Client   *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	producer := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)

	return &Producer{
		Client:   producer,
		cfg:      cfg,
		strategy: s,
	}
}

// Produce serializes the render job to JSON and sends it to Kafka.
// The job ID is used as the message key for partitioning and ordering.
func (p *Producer) Produce(ctx context.Context, j model.RenderJob) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal render job: %v", err)
	}

	key := []byte(j.ID.String())

	if err = p.Client.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send render job: %v", err)
	}

	return nil
}
