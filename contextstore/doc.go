// Package contextstore holds the live context item set for one agent
// session within configured item and budget limits.
//
// Items are inserted through typed add calls, priced once by the cost
// estimator, and kept ranked by effective priority. Every insert runs expiry
// cleanup followed by the optimizer (rank, dedup, trim), so reads are always
// over an already-optimized snapshot. Prompt assembly renders the snapshot
// into named template slots.
//
// A Store is exclusively owned by one agent session: the surrounding
// orchestrator must serialize add/optimize/build sequences per session.
// There is intentionally no internal locking.
package contextstore
