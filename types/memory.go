package types

import "time"

// MemoryType defines the kind of a durable memory record.
type MemoryType string

const (
	// MemoryConversation is a stored user/agent interaction.
	MemoryConversation MemoryType = "conversation"
	// MemoryFact is a standalone piece of factual knowledge.
	MemoryFact MemoryType = "fact"
	// MemoryPreference is a user preference.
	MemoryPreference MemoryType = "preference"
)

// Valid reports whether t is a known memory type.
func (t MemoryType) Valid() bool {
	switch t {
	case MemoryConversation, MemoryFact, MemoryPreference:
		return true
	}
	return false
}

// MemoryRecord is a durable, vector-indexed memory entry owned by one agent.
type MemoryRecord struct {
	ID      string     `json:"id"`
	AgentID string     `json:"agent_id"`
	UserID  string     `json:"user_id,omitempty"`
	Type    MemoryType `json:"type"`
	Content string     `json:"content"`

	// Importance is a heuristic score in [0,1] of the record's standalone
	// significance, computed at write time and updatable later.
	Importance float64 `json:"importance"`
	// Relevance is the query similarity in [0,1]. It is populated on
	// retrieval results only and never persisted.
	Relevance float64 `json:"relevance,omitempty"`

	Embedding []float32      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ImportanceBuckets counts records by importance band.
type ImportanceBuckets struct {
	Low    int `json:"low"`    // importance < 0.4
	Medium int `json:"medium"` // 0.4 <= importance < 0.7
	High   int `json:"high"`   // importance >= 0.7
}

// MemoryStats summarizes a memory store's contents.
type MemoryStats struct {
	TotalRecords int               `json:"total_records"`
	ByType       map[string]int    `json:"by_type"`
	ByImportance ImportanceBuckets `json:"by_importance"`
	OldestRecord time.Time         `json:"oldest_record,omitempty"`
	NewestRecord time.Time         `json:"newest_record,omitempty"`
}
