package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("instafeed.config")

type DB struct {
	DbHOST     string
	DbPORT     string
	DbUSER     string
	DbPASSWORD string
	DbNAME     string
	DbSSLMODE  string
}

type Mongo struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type MinIO struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	Region     string
	PublicURL  string
}

// Feed tunes feed composition.
type Feed struct {
	// GeneralWindow is how far back the general feed reaches.
	GeneralWindow time.Duration
	// MembershipChunk is the most author ids sent in one "author in" query.
	MembershipChunk int
	// QueryConcurrency bounds the number of chunk queries in flight.
	QueryConcurrency int
}

type RateLimit struct {
	PerSecond float64
	Burst     int
	// TrustProxy keys clients on X-Forwarded-For instead of the remote
	// address. Only set it behind a proxy that overwrites the header.
	TrustProxy bool
	// IdleTTL is how long an idle client's limiter is kept.
	IdleTTL time.Duration
}

type Config struct {
	ServerPort           int
	DB                   DB
	Mongo                Mongo
	MinIO                MinIO
	Feed                 Feed
	AuthRateLimit        RateLimit
	JWTSecretKey         string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	MaxUploadSize        int64
	MigrationsPath       string
	LoggingConfig        string
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil && floatValue > 0 {
			return floatValue
		}
	}
	return defaultValue
}

// parseDuration falls back to fallback when value is not a valid Go duration.
func parseDuration(value string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		return fallback
	}
	return duration
}

func parseMaxUploadSize(value string) int64 {
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size <= 0 {
		return 10 * 1024 * 1024
	}
	return size
}

func LoadDB() DB {
	return DB{
		DbHOST:     getEnv("DB_HOST", "localhost"),
		DbPORT:     getEnv("DB_PORT", "5432"),
		DbUSER:     getEnv("DB_USER", "postgres"),
		DbPASSWORD: getEnv("DB_PASSWORD", "password"),
		DbNAME:     getEnv("DB_NAME", "instafeed"),
		DbSSLMODE:  getEnv("DB_SSLMODE", "disable"),
	}
}

func LoadMongo() Mongo {
	return Mongo{
		URI:            getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGO_DATABASE", "instafeed"),
		ConnectTimeout: parseDuration(getEnv("MONGO_CONNECT_TIMEOUT", "10s"), 10*time.Second),
	}
}

func LoadMinIO() MinIO {
	endpoint := getEnv("MINIO_ENDPOINT", "localhost:9000")
	useSSL := getEnvBool("MINIO_USE_SSL", false)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return MinIO{
		Endpoint:   endpoint,
		AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		BucketName: getEnv("MINIO_BUCKET_NAME", "images"),
		UseSSL:     useSSL,
		Region:     getEnv("MINIO_REGION", "us-east-1"),
		PublicURL:  getEnv("MINIO_PUBLIC_URL", scheme+"://"+endpoint),
	}
}

func LoadFeed() Feed {
	return Feed{
		GeneralWindow:    parseDuration(getEnv("FEED_GENERAL_WINDOW", "24h"), 24*time.Hour),
		MembershipChunk:  getEnvAsInt("FEED_MEMBERSHIP_CHUNK", 30),
		QueryConcurrency: getEnvAsInt("FEED_QUERY_CONCURRENCY", 4),
	}
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logger.Warningf(".env file not found, using environment variables")
	}

	return &Config{
		ServerPort: getEnvAsInt("SERVER_PORT", 8080),
		DB:         LoadDB(),
		Mongo:      LoadMongo(),
		MinIO:      LoadMinIO(),
		Feed:       LoadFeed(),
		AuthRateLimit: RateLimit{
			PerSecond:  getEnvAsFloat("AUTH_RATE_LIMIT", 5),
			Burst:      getEnvAsInt("AUTH_RATE_BURST", 10),
			TrustProxy: getEnvBool("AUTH_TRUST_PROXY", false),
			IdleTTL:    parseDuration(getEnv("AUTH_LIMITER_IDLE_TTL", "10m"), 10*time.Minute),
		},
		JWTSecretKey:         getEnv("JWT_SECRET_KEY", ""),
		AccessTokenDuration:  parseDuration(getEnv("ACCESS_TOKEN_DURATION", "2h"), 2*time.Hour),
		RefreshTokenDuration: parseDuration(getEnv("REFRESH_TOKEN_DURATION", "168h"), 168*time.Hour),
		MaxUploadSize:        parseMaxUploadSize(getEnv("MAX_UPLOAD_SIZE", "10485760")),
		MigrationsPath:       getEnv("MIGRATIONS_PATH", "migrations/001_create_tables.sql"),
		LoggingConfig:        getEnv("LOGGING_CONFIG", "<root>=INFO"),
	}
}
