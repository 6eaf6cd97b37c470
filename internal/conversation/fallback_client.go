package conversation

import (
	"context"

	"github.com/wolfman30/voice-scheduler/pkg/logging"
)

// FallbackModelClient wraps a primary model client with a fallback provider.
// If the primary fails, it retries the same request with the fallback.
type FallbackModelClient struct {
	primary  ModelClient
	fallback ModelClient
	logger   *logging.Logger
}

// NewFallbackModelClient creates a new fallback-enabled model client.
// If fallback is nil, the client will only use the primary provider.
func NewFallbackModelClient(primary, fallback ModelClient, logger *logging.Logger) *FallbackModelClient {
	if primary == nil {
		panic("conversation: primary model client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackModelClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (c *FallbackModelClient) Converse(ctx context.Context, req ModelRequest) (ModelResponse, error) {
	resp, err := c.primary.Converse(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary model failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return ModelResponse{}, err
	}
	if ctx.Err() != nil {
		return ModelResponse{}, err
	}

	fallbackResp, fallbackErr := c.fallback.Converse(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback model also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return ModelResponse{}, fallbackErr
	}

	c.logger.Info("fallback model succeeded after primary failure")
	return fallbackResp, nil
}
