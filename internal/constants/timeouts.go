// Package constants defines timeout values used throughout the application.
package constants

import "time"

const (
	// Request timeout for the entire stream request
	RequestTimeout = 45 * time.Second

	// Overall indexer stage budget
	SearchTimeout = 20 * time.Second

	MetadataTimeout = 10 * time.Second

	// AllDebrid polling
	MagnetPollTimeout  = 15 * time.Second
	MagnetPollInterval = 1 * time.Second

	RetryInitialDelay = 300 * time.Millisecond
	RetryMaxDelay     = 3 * time.Second

	ShutdownTimeout = 10 * time.Second
)
