package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardlink/clinic-comms-platform/internal/llm"
)

const (
	historyTTL = 24 * time.Hour
	// maxHistoryMessages bounds the transcript handed to the model.
	maxHistoryMessages = 40
)

// HistoryStore keeps a rolling per-phone transcript in redis.
type HistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewHistoryStore wraps the provided redis client.
func NewHistoryStore(client *redis.Client) *HistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &HistoryStore{
		redis:  client,
		tracer: otel.Tracer("wardlink.internal.conversation.history"),
	}
}

// Load returns the transcript for a phone, empty when none exists.
func (s *HistoryStore) Load(ctx context.Context, phone string) ([]llm.ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, historyKey(phone)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load history: %w", err)
	}

	var history []llm.ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode history: %w", err)
	}
	return history, nil
}

// Append adds messages to the transcript, trimming the oldest entries
// past the cap and refreshing the TTL.
func (s *HistoryStore) Append(ctx context.Context, phone string, messages ...llm.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, "conversation.append_history")
	defer span.End()

	history, err := s.Load(ctx, phone)
	if err != nil {
		return err
	}
	history = append(history, messages...)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal history: %w", err)
	}
	if err := s.redis.Set(ctx, historyKey(phone), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist history: %w", err)
	}
	return nil
}

func historyKey(phone string) string {
	return fmt.Sprintf("history:%s", phone)
}
