package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for operator access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for operator access tokens in seconds
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Ingestion constants
const (
	// DefaultBatchLimit is the number of unprocessed raw records claimed per run
	DefaultBatchLimit = 200

	// MaxBatchLimit caps operator-requested batch sizes
	MaxBatchLimit = 2000

	// InlineBodyLimit is the largest raw body stored inline in the database.
	// Bigger payloads go to the object store and the row keeps a reference.
	InlineBodyLimit = 256 * 1024

	// MinPaddedCodeDigits is the zero-padded width of the numeric part of a
	// normalized product code (ABC-7 becomes ABC-007).
	MinPaddedCodeDigits = 3

	// DefaultIngestWorkers bounds concurrent record resolution within a batch
	DefaultIngestWorkers = 8
)

// API constants
const (
	// DefaultPageSize is the page size used when a list request omits one
	DefaultPageSize = 20

	// MaxPageSize caps requested page sizes
	MaxPageSize = 100

	// CatalogCacheTTL bounds how stale a cached product detail may get
	CatalogCacheTTL = 5 * time.Minute
)
