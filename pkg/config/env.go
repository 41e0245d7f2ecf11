package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisEnabled  = "REDIS_ENABLED"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort        = "PORT"
	EnvLogLevel    = "LOG_LEVEL"
	EnvStoreDriver = "STORE_DRIVER"

	EnvSeedDoctorID = "SEED_DOCTOR_ID"
	EnvSeedDays     = "SEED_DAYS"

	EnvJWTSecret = "JWT_SECRET"
	EnvJWTTTL    = "JWT_TTL"

	EnvHoldDuration         = "HOLD_DURATION"
	EnvSweepInterval        = "SWEEP_INTERVAL"
	EnvTodayBuffer          = "TODAY_BUFFER"
	EnvClinicTimezone       = "CLINIC_TIMEZONE"
	EnvAvailabilityCacheTTL = "AVAILABILITY_CACHE_TTL"
	EnvSessionTTL           = "SESSION_TTL"

	EnvSlotStoreURL      = "SLOT_STORE_URL"
	EnvProfileServiceURL = "PROFILE_SERVICE_URL"
	EnvClientTimeout     = "CLIENT_TIMEOUT"
	EnvReleaseTimeout    = "RELEASE_TIMEOUT"

	EnvKafkaEnabled       = "KAFKA_ENABLED"
	EnvSlotEventsTopic    = "SLOT_EVENTS_TOPIC"
	EnvSlotEventsDLQTopic = "SLOT_EVENTS_DLQ_TOPIC"
	EnvSlotEventsGroup    = "SLOT_EVENTS_GROUP"

	EnvHoldRateLimit = "HOLD_RATE_LIMIT"
	EnvHoldRateBurst = "HOLD_RATE_BURST"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
