// Package types provides the shared data model for the contextcore module:
// typed context items, durable memory records, token accounting, and the
// structured error type used across packages.
package types
