// Package httputil provides HTTP client utilities with standard configurations.
package httputil

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// Default timeout for HTTP requests
	defaultTimeout = 30 * time.Second

	maxIdleConns        = 50
	maxIdleConnsPerHost = 10
	idleConnTimeout     = 90 * time.Second
)

// NewHTTPClient creates a traced HTTP client with the specified timeout.
// A zero timeout leaves request lifetime to the caller's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// NewDefaultHTTPClient creates a new HTTP client with default 30 second timeout.
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(defaultTimeout)
}
