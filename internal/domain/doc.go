// Package domain defines the core voting types and interfaces.
//
// Concept-oriented files (vote.go, votee.go, store.go, errors.go) hold shared types and
// cross-cutting contracts. No implementation code - just contracts.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
