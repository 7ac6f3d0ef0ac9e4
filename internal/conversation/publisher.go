package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// publishTimeout bounds each enqueue so a slow queue cannot stall the
// webhook handler.
const publishTimeout = 3 * time.Second

// Publisher enqueues inbound messages for asynchronous processing.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// Enqueue publishes an inbound message job.
func (p *Publisher) Enqueue(ctx context.Context, msg InboundMessage) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{Message: msg})
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.queue.Send(sendCtx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "phone", msg.Phone)
	return nil
}
