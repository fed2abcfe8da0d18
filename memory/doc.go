// Package memory provides durable, vector-indexed long-term memory for a
// single agent. A Store composes three replaceable parts: an
// embedding.Embedder that turns text into vectors, a VectorIndex holding the
// process-local similarity index, and a RecordStore persisting the records
// themselves (GORM-backed SQL or Redis).
//
// Records survive restarts in the RecordStore; the index is rebuilt with
// LoadIndex. Writes persist the record first and index second, rolling the
// record back if indexing fails.
package memory
