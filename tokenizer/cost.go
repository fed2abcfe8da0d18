package tokenizer

import (
	"go.uber.org/zap"
)

// CostEstimator converts text into non-negative integer budget costs using
// one consistent codec per instance. When the codec fails (for example the
// tiktoken data is unavailable) it falls back to len/4 so item insertion
// never blocks on cost computation.
type CostEstimator struct {
	codec  Tokenizer
	logger *zap.Logger
}

// NewCostEstimator creates a cost estimator pinned to the codec registered
// for the given model, falling back to the character estimator when the
// model is unknown.
func NewCostEstimator(model string, logger *zap.Logger) *CostEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CostEstimator{
		codec:  ForModelOrEstimator(model),
		logger: logger.With(zap.String("component", "cost_estimator")),
	}
}

// Cost returns the budget cost of text. The result is always >= 0.
func (c *CostEstimator) Cost(text string) int {
	n, err := c.codec.CountTokens(text)
	if err != nil {
		c.logger.Warn("codec failed, falling back to len/4",
			zap.String("codec", c.codec.Name()),
			zap.Int("text_len", len(text)),
			zap.Error(err))
		n = len(text) / 4
	}
	if n < 0 {
		n = 0
	}
	return n
}

// CodecName returns the name of the pinned codec.
func (c *CostEstimator) CodecName() string {
	return c.codec.Name()
}
