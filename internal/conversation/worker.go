package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second

	// fallbackReply goes out when the pipeline fails outright; the user
	// must never see a raw error.
	fallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a little while, or call the clinic directly."
)

type replySender interface {
	Send(ctx context.Context, phoneE164, message string) error
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          *obsmetrics.PlatformMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithMetrics attaches platform metrics. All counters are nil-safe.
func WithMetrics(m *obsmetrics.PlatformMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// Worker consumes inbound-message jobs from the queue, runs the pipeline,
// and sends the reply through the gateway.
type Worker struct {
	processor Service
	queue     Queue
	sender    replySender
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker constructs a queue consumer around the provided processor.
func NewWorker(processor Service, queue Queue, sender replySender, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if sender == nil {
		panic("conversation: reply sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		sender:    sender,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg QueueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode conversation job", "error", err)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	reply, err := w.processor.ProcessInbound(ctx, payload.Message)
	switch {
	case err != nil:
		w.logger.Error("pipeline failed", "job_id", payload.ID, "error", err)
		w.sendReply(ctx, payload.Message.Phone, fallbackReply)
	case reply != nil && reply.Body != "":
		w.sendReply(ctx, reply.Phone, reply.Body)
	}

	w.deleteMessage(msg.ReceiptHandle)
}

// sendReply is best-effort; a gateway failure never requeues the job.
func (w *Worker) sendReply(ctx context.Context, phone, body string) {
	if phone == "" {
		return
	}
	if err := w.sender.Send(ctx, phone, body); err != nil {
		w.cfg.metrics.ObserveOutbound("failed")
		w.logger.Error("reply send failed", "phone", phone, "error", err)
		return
	}
	w.cfg.metrics.ObserveOutbound("sent")
}

// deleteMessage uses a fresh context so a cancelled worker still acks
// work it already finished.
func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Warn("failed to delete queue message", "error", err)
	}
}
