package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Values come from the environment (optionally via a .env file) with
// simple defaults suitable for a single-host LAN deployment.
type Config struct {
	ServerAddr string // listen address for the status service, e.g. ":8080"

	DataDir     string // directory holding the persisted JSON documents
	CountsFile  string // play counts document: DataDir/playcounts.server.json
	DevicesFile string // device registry document: DataDir/devices.server.json
	WebAppDir   string // web content root served at /
	MediaDir    string // local media directory served at /media/ when MinIO is off
	CatalogPath string // static song catalog document

	DeviceTTL         time.Duration // registry entries older than this are hidden
	CompactInterval   time.Duration // 0 disables periodic registry compaction
	HeartbeatInterval time.Duration // agent status heartbeat period
	RosterPoll        time.Duration // agent device roster poll period

	// StoreBackend selects the persistence layer: "file" (default) or "redis".
	StoreBackend string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional media object storage. Empty endpoint disables MinIO and
	// /media/ falls back to the local MediaDir.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvSeconds gets an environment variable as a duration in whole seconds.
func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DataDir:     dataDir,
		CountsFile:  filepath.Join(dataDir, "playcounts.server.json"),
		DevicesFile: filepath.Join(dataDir, "devices.server.json"),
		WebAppDir:   getEnv("WEBAPP_DIR", filepath.Join("web", "ui")),
		MediaDir:    getEnv("MEDIA_DIR", "media"),
		CatalogPath: getEnv("CATALOG_PATH", filepath.Join("web", "ui", "json", "songs.json")),

		DeviceTTL:         getEnvSeconds("DEVICE_TTL_SECONDS", 10*time.Minute),
		CompactInterval:   getEnvSeconds("COMPACT_INTERVAL_SECONDS", 0),
		HeartbeatInterval: getEnvSeconds("HEARTBEAT_SECONDS", 10*time.Second),
		RosterPoll:        getEnvSeconds("ROSTER_POLL_SECONDS", 5*time.Second),

		StoreBackend: getEnv("STORE_BACKEND", "file"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "lanfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
