package config

import (
	"clinicslots/pkg/client"
	"clinicslots/pkg/logger"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port        string
	StoreDriver string

	// SeedDoctorID, when set, fills the memory store with SeedDays of
	// working-day slots for that doctor at startup.
	SeedDoctorID string
	SeedDays     int

	JWTSecret string
	JWTTTL    time.Duration

	HoldDuration         time.Duration
	SweepInterval        time.Duration
	TodayBuffer          time.Duration
	ClinicTimezone       string
	Location             *time.Location
	AvailabilityCacheTTL time.Duration
	SessionTTL           time.Duration

	SlotStoreURL      string
	ProfileServiceURL string
	ClientTimeout     time.Duration
	ReleaseTimeout    time.Duration

	KafkaEnabled       bool
	SlotEventsTopic    string
	SlotEventsDLQTopic string
	SlotEventsGroup    string

	HoldRateLimit float64
	HoldRateBurst int

	RequestTimeout time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the configuration for serviceName from the environment. A .env
// file in the working directory is applied first when present; variables
// already set in the environment take precedence over it.
func Load(serviceName string) *Config {
	dotenvErr := godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisEnabled:  getEnvBool(EnvRedisEnabled, DefaultRedisEnabled),
		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port:        getEnvStr(EnvPort, DefaultPort),
		StoreDriver: getEnvStr(EnvStoreDriver, DefaultStoreDriver),

		SeedDoctorID: getEnvStr(EnvSeedDoctorID, ""),
		SeedDays:     getEnvNum(EnvSeedDays, DefaultSeedDays),

		JWTSecret: getEnvStr(EnvJWTSecret, ""),
		JWTTTL:    getEnvDuration(EnvJWTTTL, DefaultJWTTTL),

		HoldDuration:         getEnvDuration(EnvHoldDuration, DefaultHoldDuration),
		SweepInterval:        getEnvDuration(EnvSweepInterval, DefaultSweepInterval),
		TodayBuffer:          getEnvDuration(EnvTodayBuffer, DefaultTodayBuffer),
		ClinicTimezone:       getEnvStr(EnvClinicTimezone, DefaultClinicTimezone),
		AvailabilityCacheTTL: getEnvDuration(EnvAvailabilityCacheTTL, DefaultAvailabilityCacheTTL),
		SessionTTL:           getEnvDuration(EnvSessionTTL, DefaultSessionTTL),

		SlotStoreURL:      getEnvStr(EnvSlotStoreURL, DefaultSlotStoreURL),
		ProfileServiceURL: getEnvStr(EnvProfileServiceURL, ""),
		ClientTimeout:     getEnvDuration(EnvClientTimeout, DefaultClientTimeout),
		ReleaseTimeout:    getEnvDuration(EnvReleaseTimeout, DefaultReleaseTimeout),

		KafkaEnabled:       getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		SlotEventsTopic:    getEnvStr(EnvSlotEventsTopic, DefaultSlotEventsTopic),
		SlotEventsDLQTopic: getEnvStr(EnvSlotEventsDLQTopic, DefaultSlotEventsDLQTopic),
		SlotEventsGroup:    getEnvStr(EnvSlotEventsGroup, DefaultSlotEventsGroup),

		HoldRateLimit: getEnvFloat(EnvHoldRateLimit, DefaultHoldRateLimit),
		HoldRateBurst: getEnvNum(EnvHoldRateBurst, DefaultHoldRateBurst),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to load .env file", "error", dotenvErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

// SetRedis connects Redis when enabled. A failed connection leaves
// cfg.Client.Redis nil so callers fall back to in-process stores.
func (cfg *Config) SetRedis() {
	if !cfg.RedisEnabled {
		cfg.Log.Info("Redis disabled, using in-process stores")
		return
	}
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreDriver {
	case StoreDriverMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreDriverMemory:
		if cfg.SeedDoctorID != "" && cfg.SeedDays <= 0 {
			errors = append(errors, fmt.Sprintf("SeedDays must be positive, got: %d", cfg.SeedDays))
		}
	default:
		errors = append(errors, fmt.Sprintf("StoreDriver must be one of [mongo, memory], got: %s", cfg.StoreDriver))
	}

	if cfg.RedisEnabled && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when Redis is enabled")
	}

	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("ClinicTimezone must be a valid IANA zone, got: %s", cfg.ClinicTimezone))
	} else {
		cfg.Location = loc
	}

	if cfg.SlotStoreURL != "" {
		if u, err := url.Parse(cfg.SlotStoreURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("SlotStoreURL must be an absolute URL, got: %s", cfg.SlotStoreURL))
		}
	}

	if cfg.HoldDuration <= 0 {
		errors = append(errors, fmt.Sprintf("HoldDuration must be positive, got: %s", cfg.HoldDuration))
	}
	if cfg.SweepInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweepInterval must be positive, got: %s", cfg.SweepInterval))
	}
	if cfg.TodayBuffer < 0 {
		errors = append(errors, fmt.Sprintf("TodayBuffer cannot be negative, got: %s", cfg.TodayBuffer))
	}
	if cfg.AvailabilityCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("AvailabilityCacheTTL must be positive, got: %s", cfg.AvailabilityCacheTTL))
	}
	if cfg.SessionTTL < cfg.HoldDuration {
		errors = append(errors, fmt.Sprintf("SessionTTL (%s) must be >= HoldDuration (%s)", cfg.SessionTTL, cfg.HoldDuration))
	}
	if cfg.JWTTTL <= 0 {
		errors = append(errors, fmt.Sprintf("JWTTTL must be positive, got: %s", cfg.JWTTTL))
	}
	if cfg.ClientTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ClientTimeout must be positive, got: %s", cfg.ClientTimeout))
	}
	if cfg.ReleaseTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReleaseTimeout must be positive, got: %s", cfg.ReleaseTimeout))
	}
	if cfg.KafkaEnabled && cfg.SlotEventsTopic == "" {
		errors = append(errors, "SlotEventsTopic cannot be empty when Kafka is enabled")
	}
	if cfg.HoldRateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("HoldRateLimit must be positive, got: %v", cfg.HoldRateLimit))
	}
	if cfg.HoldRateBurst <= 0 {
		errors = append(errors, fmt.Sprintf("HoldRateBurst must be positive, got: %d", cfg.HoldRateBurst))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"store_driver", cfg.StoreDriver,
		"seed_doctor_id", cfg.SeedDoctorID,
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"hold_duration", cfg.HoldDuration,
		"sweep_interval", cfg.SweepInterval,
		"today_buffer", cfg.TodayBuffer,
		"clinic_timezone", cfg.ClinicTimezone,
		"availability_cache_ttl", cfg.AvailabilityCacheTTL,
		"session_ttl", cfg.SessionTTL,
		"slot_store_url", cfg.SlotStoreURL,
		"profile_service_url", cfg.ProfileServiceURL,
		"kafka_enabled", cfg.KafkaEnabled,
		"slot_events_topic", cfg.SlotEventsTopic,
		"hold_rate_limit", cfg.HoldRateLimit,
		"hold_rate_burst", cfg.HoldRateBurst,
		"request_timeout", cfg.RequestTimeout,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

// Now returns the current time in the clinic's timezone.
func (cfg *Config) Now() time.Time {
	if cfg.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(cfg.Location)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
