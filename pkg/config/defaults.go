package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "trimly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 20
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Slot policy: 30-minute slots generated 7 days ahead unless the caller
	// asks otherwise.
	DefaultSlotDurationMin = 30
	DefaultDaysAhead       = 7

	MinSlotDurationMin = 5
	MaxSlotDurationMin = 480
	MaxDaysAhead       = 90

	DefaultCatalogURL   = "http://localhost:8081"
	DefaultDirectoryURL = "http://localhost:8082"

	DefaultKafkaSlotsTopic   = "trimly.slots"
	DefaultKafkaBookingTopic = "trimly.bookings"

	DefaultMetricsPath = "/metrics"

	DefaultPaginationLimit = 20
	MaxPaginationLimit     = 100
)

// NormalizePaginationLimit clamps a caller-supplied page size.
func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		return DefaultPaginationLimit
	}
	if limit > MaxPaginationLimit {
		return MaxPaginationLimit
	}
	return limit
}

// NormalizeOffset clamps a caller-supplied offset.
func NormalizeOffset(offset int64) int64 {
	if offset < 0 {
		return 0
	}
	return offset
}
