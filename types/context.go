package types

import (
	"math"
	"time"
)

// ContextType classifies a context item. The type determines the item's
// default priority and which prompt slot its content renders into.
type ContextType string

const (
	ContextSystem        ContextType = "system"
	ContextUser          ContextType = "user"
	ContextAgent         ContextType = "agent"
	ContextTool          ContextType = "tool"
	ContextMemory        ContextType = "memory"
	ContextCollaboration ContextType = "collaboration"
	ContextEnvironment   ContextType = "environment"
)

// AllContextTypes lists every context type in prompt-slot order.
var AllContextTypes = []ContextType{
	ContextSystem,
	ContextUser,
	ContextMemory,
	ContextAgent,
	ContextTool,
	ContextCollaboration,
	ContextEnvironment,
}

// Valid reports whether t is a known context type.
func (t ContextType) Valid() bool {
	switch t {
	case ContextSystem, ContextUser, ContextAgent, ContextTool,
		ContextMemory, ContextCollaboration, ContextEnvironment:
		return true
	}
	return false
}

// DefaultPriority returns the static priority assigned to items of this type
// when the caller does not set one. Memory items are the exception: their
// priority is derived from retrieval relevance at insertion time.
func (t ContextType) DefaultPriority() int {
	switch t {
	case ContextSystem:
		return 10
	case ContextUser:
		return 8
	case ContextCollaboration:
		return 7
	case ContextAgent:
		return 6
	case ContextTool:
		return 5
	case ContextMemory:
		return 4
	case ContextEnvironment:
		return 3
	default:
		return 1
	}
}

// CompressionLevel records how much of an item's original content survives.
type CompressionLevel int

const (
	// CompressionOriginal means the content is untouched.
	CompressionOriginal CompressionLevel = iota
	// CompressionCompressed means the content was truncated in place.
	CompressionCompressed
	// CompressionSummaryOnly means only a summary of the content remains.
	CompressionSummaryOnly
)

// String returns the string representation of the compression level.
func (l CompressionLevel) String() string {
	switch l {
	case CompressionOriginal:
		return "original"
	case CompressionCompressed:
		return "compressed"
	case CompressionSummaryOnly:
		return "summary_only"
	default:
		return "unknown"
	}
}

// ContextItem is a typed, priced, timestamped unit of text held by a context
// store. Items are created through the store's typed add calls and after that
// mutated only by the optimizer (compression) or removed by expiry and
// budget eviction.
type ContextItem struct {
	Type     ContextType    `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Priority is a static rank in [0,10], defaulted from the type table.
	Priority int `json:"priority"`
	// Relevance is a semantic closeness score in [0,1]; 1 when unknown.
	Relevance float64 `json:"relevance"`
	// CostUnits is the cached budget cost, computed once at insertion and
	// recomputed only when the content is compressed.
	CostUnits int `json:"cost_units"`

	Compression CompressionLevel `json:"compression"`
	// OriginalLength records len(Content) before any compression.
	OriginalLength int `json:"original_length,omitempty"`

	Embedding []float32 `json:"embedding,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Seq is the insertion sequence number assigned by the owning store.
	// It breaks ranking and dedup ties deterministically.
	Seq uint64 `json:"-"`
}

// Expired reports whether the item is past its expiry at the given instant.
func (it *ContextItem) Expired(now time.Time) bool {
	return it.ExpiresAt != nil && now.After(*it.ExpiresAt)
}

// Age returns how long the item has been in the store.
func (it *ContextItem) Age(now time.Time) time.Duration {
	return now.Sub(it.CreatedAt)
}

// AgeDecay returns the exponential decay factor for an item of the given age.
// The factor halves every halfLife and is always in (0,1]. A non-positive
// halfLife disables decay.
func AgeDecay(age, halfLife time.Duration) float64 {
	if halfLife <= 0 || age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(halfLife))
}

// EffectivePriority is the ranking value priority x relevance x ageDecay.
// It is derived on demand, never stored, and monotonically non-increasing
// with age for a fixed item.
func (it *ContextItem) EffectivePriority(now time.Time, halfLife time.Duration) float64 {
	return float64(it.Priority) * it.Relevance * AgeDecay(it.Age(now), halfLife)
}

// ClampPriority bounds a priority to [0,10].
func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 10 {
		return 10
	}
	return p
}

// ClampUnit bounds a score to [0,1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
