// Package constants provides shared constants used throughout the placemap codebase.
// This includes timeouts, TTLs, matching thresholds and file permissions
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to external sources
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultProviderTimeout is used when a provider does not declare its own timeout
	DefaultProviderTimeout = 3 * time.Second

	// DefaultCatalogTimeout bounds a single authoritative store query
	DefaultCatalogTimeout = 5 * time.Second

	// HealthCheckTimeout bounds a single provider health probe
	HealthCheckTimeout = 2 * time.Second

	// ShutdownTimeout is how long graceful shutdown may take
	ShutdownTimeout = 5 * time.Second

	// CommandTimeout is the default timeout for one-shot CLI commands
	CommandTimeout = 2 * time.Minute
)

// Cache constants
const (
	// SearchCacheTTL is how long a search result stays cached
	SearchCacheTTL = 300 * time.Second

	// PlaceCacheTTL is how long a single place lookup stays cached
	PlaceCacheTTL = 1800 * time.Second

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 10 * time.Minute
)

// Search constants
const (
	// DefaultSearchRadius is the radius in meters used when a query has none
	DefaultSearchRadius = 1000.0

	// MaxSearchRadius is the largest accepted radius in meters
	MaxSearchRadius = 50000.0

	// DefaultSearchLimit is the number of places returned when a query has no limit
	DefaultSearchLimit = 20

	// MaxSearchLimit is the largest accepted limit
	MaxSearchLimit = 100
)

// Matching constants
const (
	// LinkRadius is the tolerance in meters for matching an external place to a canonical one
	LinkRadius = 50.0

	// DedupRadius is the tolerance in meters for display-time deduplication
	DedupRadius = 50.0

	// DedupCompareRadius is the distance in meters within which deduplication
	// always compares two places
	DedupCompareRadius = 150.0

	// LinkMatchThreshold is the minimum name similarity for a fuzzy catalog match
	LinkMatchThreshold = 0.7

	// ProviderPlaceConfidence is the confidence given to places created from provider data
	ProviderPlaceConfidence = 0.8

	// AuthoritativeConfidence is the confidence of places returned by the catalog
	AuthoritativeConfidence = 1.0
)

// Import constants
const (
	// ImportBatchSize is the number of records upserted per batch
	ImportBatchSize = 500

	// ImportConfirmThreshold is the record count above which imports need confirmation
	ImportConfirmThreshold = 10000

	// ImportErrorSamples is the number of per-record errors kept for reporting
	ImportErrorSamples = 5

	// ImportWorkers is the default number of concurrent batch writers
	ImportWorkers = 4

	// ClearBatchSize is the number of rows deleted per statement by clear
	ClearBatchSize = 1000
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Channel and buffer sizes
const (
	// EventBufferSize is the capacity of the event broker queue
	EventBufferSize = 256

	// ClientBufferSize is the per-client outbound message queue size
	ClientBufferSize = 256
)
