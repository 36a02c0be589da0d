// Package constants defines numerical limits.
package constants

const (
	// Indexers are always asked for at least this many results.
	MinIndexerResults = 10

	DefaultMaxResults = 5
	MaxAllowedResults = 50

	DefaultIndexerConcurrency = 8
	DefaultDebridConcurrency  = 4
	DefaultRetryAttempts      = 3

	// Response body caps
	MaxTorznabBody = 8 * 1024 * 1024
	MaxAPIBody     = 2 * 1024 * 1024
)
