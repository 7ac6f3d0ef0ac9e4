package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

type stubService struct {
	mu      sync.Mutex
	inbound []InboundMessage
	reply   *Reply
	err     error
}

func (s *stubService) ProcessInbound(_ context.Context, msg InboundMessage) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbound = append(s.inbound, msg)
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func (s *stubService) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound)
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (r *recordingSender) Send(_ context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[phone] = append(r.sent[phone], message)
	return nil
}

func (r *recordingSender) messages(phone string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent[phone]...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWorkerProcessesAndReplies(t *testing.T) {
	queue := NewMemoryQueue(8)
	service := &stubService{reply: &Reply{Phone: "+2348090000001", Body: "got it"}}
	sender := &recordingSender{}
	worker := NewWorker(service, queue, sender, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	if err := publisher.Enqueue(ctx, InboundMessage{MessageID: "m1", Phone: "+2348090000001", Text: "hello"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, func() bool { return len(sender.messages("+2348090000001")) == 1 })
	if got := sender.messages("+2348090000001")[0]; got != "got it" {
		t.Fatalf("unexpected reply %q", got)
	}

	cancel()
	worker.Wait()
}

func TestWorkerSendsFallbackOnPipelineFailure(t *testing.T) {
	queue := NewMemoryQueue(8)
	service := &stubService{err: errors.New("boom")}
	sender := &recordingSender{}
	worker := NewWorker(service, queue, sender, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	if err := publisher.Enqueue(ctx, InboundMessage{Phone: "+2348090000001", Text: "hello"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, func() bool { return len(sender.messages("+2348090000001")) == 1 })
	if got := sender.messages("+2348090000001")[0]; got != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", got)
	}

	cancel()
	worker.Wait()
}

func TestWorkerSkipsEmptyReplies(t *testing.T) {
	queue := NewMemoryQueue(8)
	service := &stubService{reply: &Reply{Phone: "+2348030000001", Body: ""}}
	sender := &recordingSender{}
	worker := NewWorker(service, queue, sender, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewPublisher(queue, logging.Default())
	if err := publisher.Enqueue(ctx, InboundMessage{Phone: "+2348030000001", Text: "yes"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	waitFor(t, func() bool { return service.count() == 1 })
	// Give the worker a beat to (not) send.
	time.Sleep(50 * time.Millisecond)
	if msgs := sender.messages("+2348030000001"); len(msgs) != 0 {
		t.Fatalf("expected no sends for empty reply, got %v", msgs)
	}

	cancel()
	worker.Wait()
}

func TestWorkerDropsUndecodableJobs(t *testing.T) {
	queue := NewMemoryQueue(8)
	service := &stubService{reply: &Reply{}}
	worker := NewWorker(service, queue, &recordingSender{}, logging.Default(), WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	if err := queue.Send(ctx, "{not json"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := NewPublisher(queue, logging.Default()).Enqueue(ctx, InboundMessage{Phone: "+15551234567", Text: "after"}); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	// The bad job is dropped and the good one still processes.
	waitFor(t, func() bool { return service.count() == 1 })

	cancel()
	worker.Wait()
}
