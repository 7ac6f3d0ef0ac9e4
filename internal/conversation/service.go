package conversation

import (
	"context"
	"time"

	"github.com/wardlink/clinic-comms-platform/internal/decision"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/internal/llm"
	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// InboundMessage is one normalized message from the messaging gateway.
type InboundMessage struct {
	MessageID  string            `json:"messageId"`
	Phone      string            `json:"phone"`
	Text       string            `json:"text"`
	Media      *escalation.Media `json:"media,omitempty"`
	ReceivedAt time.Time         `json:"receivedAt"`
}

// Reply is the outbound answer for one inbound message. An empty Body
// means the turn's side effects already said everything.
type Reply struct {
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Service processes inbound messages end to end.
type Service interface {
	ProcessInbound(ctx context.Context, msg InboundMessage) (*Reply, error)
}

type scopeResolver interface {
	Resolve(ctx context.Context, rawPhone string) (identity.Identity, error)
}

type decisionEngine interface {
	Handle(ctx context.Context, turn decision.Turn) decision.Reply
}

type transcriptStore interface {
	Load(ctx context.Context, phone string) ([]llm.ChatMessage, error)
	Append(ctx context.Context, phone string, messages ...llm.ChatMessage) error
}

// Pipeline is the production Service: resolve who is talking, assemble
// the turn, run the decision engine, record the transcript. Each call is
// self-contained; no request state outlives it.
type Pipeline struct {
	resolver scopeResolver
	engine   decisionEngine
	history  transcriptStore
	logger   *logging.Logger
	metrics  *obsmetrics.PlatformMetrics
	now      func() time.Time
}

// NewPipeline wires the message pipeline.
func NewPipeline(resolver scopeResolver, engine decisionEngine, history transcriptStore, logger *logging.Logger) *Pipeline {
	if resolver == nil {
		panic("conversation: resolver cannot be nil")
	}
	if engine == nil {
		panic("conversation: decision engine cannot be nil")
	}
	if history == nil {
		panic("conversation: history store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		resolver: resolver,
		engine:   engine,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches platform metrics. All counters are nil-safe.
func (p *Pipeline) WithMetrics(m *obsmetrics.PlatformMetrics) *Pipeline {
	p.metrics = m
	return p
}

// ProcessInbound handles one message. Identity failures propagate; a
// history outage degrades to a memoryless turn rather than failing.
func (p *Pipeline) ProcessInbound(ctx context.Context, msg InboundMessage) (*Reply, error) {
	start := p.now()

	ident, err := p.resolver.Resolve(ctx, msg.Phone)
	if err != nil {
		return nil, err
	}

	history, err := p.history.Load(ctx, ident.PhoneE164)
	if err != nil {
		p.logger.Warn("history load failed, continuing without", "phone", ident.PhoneE164, "error", err)
		history = nil
	}

	reply := p.engine.Handle(ctx, decision.Turn{
		Identity: ident,
		Message:  msg.Text,
		Media:    msg.Media,
		History:  history,
	})

	turn := []llm.ChatMessage{{Role: llm.ChatRoleUser, Content: msg.Text}}
	if reply.Text != "" {
		turn = append(turn, llm.ChatMessage{Role: llm.ChatRoleAssistant, Content: reply.Text})
	}
	if err := p.history.Append(ctx, ident.PhoneE164, turn...); err != nil {
		p.logger.Warn("history append failed", "phone", ident.PhoneE164, "error", err)
	}

	p.metrics.ObserveAction(string(reply.Action))
	p.metrics.ObserveInboundLatency(string(ident.Scope), p.now().Sub(start).Seconds())

	p.logger.Info("inbound message processed",
		"scope", string(ident.Scope),
		"action", string(reply.Action),
		"message_id", msg.MessageID,
	)
	return &Reply{Phone: ident.PhoneE164, Body: reply.Text, Timestamp: p.now().UTC()}, nil
}
