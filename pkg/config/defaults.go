package config

import "time"

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "clinicslots"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisEnabled = false
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisDB      = 0

	DefaultPort        = "8080"
	DefaultLogLevel    = "info"
	DefaultStoreDriver = StoreDriverMongo
	DefaultSeedDays    = 14

	DefaultJWTTTL = 12 * time.Hour

	DefaultHoldDuration         = 120 * time.Second
	DefaultSweepInterval        = 5 * time.Second
	DefaultTodayBuffer          = 15 * time.Minute
	DefaultClinicTimezone       = "UTC"
	DefaultAvailabilityCacheTTL = 60 * time.Second
	DefaultSessionTTL           = 30 * time.Minute

	DefaultSlotStoreURL   = "http://localhost:8080"
	DefaultClientTimeout  = 10 * time.Second
	DefaultReleaseTimeout = 5 * time.Second

	DefaultKafkaEnabled       = false
	DefaultSlotEventsTopic    = "slot-events"
	DefaultSlotEventsDLQTopic = "slot-events-dlq"
	DefaultSlotEventsGroup    = "booking-flow"

	DefaultHoldRateLimit = 2.0
	DefaultHoldRateBurst = 10

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)
