package constants

import (
	"time"
)

// Polling configuration
const (
	// DefaultPollInterval - fixed interval between job status polls (2 seconds)
	// Matches the analysis service's expected client cadence. Not adaptive.
	DefaultPollInterval = 2 * time.Second

	// MaxPollFailures - consecutive transport failures tolerated by the watch
	// loop before it gives up. A successful poll resets the counter.
	MaxPollFailures = 5
)

// Table view defaults
const (
	// DefaultPageSize - rows per page in 'results show'. 0 means "all".
	DefaultPageSize = 25
)

// HTTP client configuration
const (
	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (60 seconds)
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second
)

// AcceptedExtensions lists the document types the analysis service accepts.
var AcceptedExtensions = []string{".pdf", ".xlsx", ".xls", ".csv"}
