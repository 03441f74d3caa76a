package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/domain"
	"github.com/ledgerline/importd/internal/infra/observability"
)

// ProgressChannel is the pub/sub channel progress events are published to.
const ProgressChannel = "import:progress"

// Publisher broadcasts progress events over Redis pub/sub. Failures are
// logged and counted but never surfaced; the job store record stays the
// authoritative state.
type Publisher struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Redis-backed progress publisher.
func NewPublisher(client *redis.Client, logger *zap.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{client: client, logger: logger, metrics: metrics}
}

// Publish serializes the event and publishes it to the progress channel.
func (p *Publisher) Publish(ctx context.Context, event domain.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode progress event",
			zap.String("job_id", event.JobID),
			zap.Error(err))
		p.metrics.IncrPublishFailure()
		return
	}
	if err := p.client.Publish(ctx, ProgressChannel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish progress event",
			zap.String("job_id", event.JobID),
			zap.Error(err))
		p.metrics.IncrPublishFailure()
	}
}
