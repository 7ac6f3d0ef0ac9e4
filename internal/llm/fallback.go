package llm

import (
	"context"

	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

// callObserver records per-provider call outcomes. Satisfied by
// metrics.PlatformMetrics.
type callObserver interface {
	ObserveLLMCall(provider, outcome string)
}

// FallbackClient wraps a primary client with a fallback provider. If the
// primary fails, the request is retried once against the fallback.
type FallbackClient struct {
	primary  Client
	fallback Client
	logger   *logging.Logger
	observer callObserver
}

// NewFallbackClient creates a fallback-enabled client. If fallback is
// nil, only the primary provider is used.
func NewFallbackClient(primary, fallback Client, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("llm: primary client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// WithObserver attaches a call observer for per-provider counters.
func (c *FallbackClient) WithObserver(observer callObserver) *FallbackClient {
	c.observer = observer
	return c
}

func (c *FallbackClient) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.ObserveLLMCall(provider, outcome)
	}
}

// Complete sends the request to the primary provider, falling back on error.
func (c *FallbackClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		c.observe("primary", "ok")
		return resp, nil
	}
	c.observe("primary", "error")

	c.logger.Warn("primary LLM failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)

	if c.fallback == nil {
		return Response{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.observe("fallback", "error")
		c.logger.Error("fallback LLM also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return Response{}, fallbackErr
	}

	c.observe("fallback", "ok")
	c.logger.Info("fallback LLM succeeded after primary failure")
	return fallbackResp, nil
}
