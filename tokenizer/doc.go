// Package tokenizer converts text into integer budget costs. It provides a
// tiktoken-backed codec for OpenAI-family models, a CJK-aware character
// estimator fallback, a startup-time model registry, and a drift tracker
// that cross-checks estimates against provider-reported token usage.
package tokenizer
