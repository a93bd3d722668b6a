package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Cache         CacheConfig
	Scheduler     SchedulerConfig
	Notifications NotificationConfig
	Exports       ExportsConfig
	Leave         LeaveConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig toggles the Redis read-through cache for live timetables.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// SchedulerConfig tunes timetable generation.
type SchedulerConfig struct {
	Candidates        int
	PeriodsPerDay     int
	LabBlocks         [][]int
	MaxClassesPerDay  int
	MaxClassesPerWeek int
	MinAcademicPerDay int
	Pillars           []string
	FacultyFallback   string
	ProposalTTL       time.Duration
	Parallel          bool
}

// NotificationConfig sizes the in-process notification queue.
type NotificationConfig struct {
	Workers    int
	Retries    int
	BufferSize int
}

// ExportsConfig controls rendered timetable storage & signed downloads.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// LeaveConfig bounds leave applications.
type LeaveConfig struct {
	MaxDays int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.Scheduler = SchedulerConfig{
		Candidates:        v.GetInt("SCHEDULER_CANDIDATES"),
		PeriodsPerDay:     v.GetInt("SCHEDULER_PERIODS_PER_DAY"),
		LabBlocks:         parseBlocks(v.GetString("SCHEDULER_LAB_BLOCKS")),
		MaxClassesPerDay:  v.GetInt("SCHEDULER_MAX_CLASSES_PER_DAY"),
		MaxClassesPerWeek: v.GetInt("SCHEDULER_MAX_CLASSES_PER_WEEK"),
		MinAcademicPerDay: v.GetInt("SCHEDULER_MIN_ACADEMIC_PER_DAY"),
		Pillars:           splitAndTrim(v.GetString("SCHEDULER_PILLARS")),
		FacultyFallback:   strings.ToLower(strings.TrimSpace(v.GetString("SCHEDULER_FACULTY_FALLBACK"))),
		ProposalTTL:       parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		Parallel:          v.GetBool("SCHEDULER_PARALLEL"),
	}

	cfg.Notifications = NotificationConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		Retries:    v.GetInt("NOTIFY_RETRIES"),
		BufferSize: v.GetInt("NOTIFY_BUFFER"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Leave = LeaveConfig{MaxDays: v.GetInt("LEAVE_MAX_DAYS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("SCHEDULER_CANDIDATES", 5)
	v.SetDefault("SCHEDULER_PERIODS_PER_DAY", 7)
	v.SetDefault("SCHEDULER_LAB_BLOCKS", "2-3-4,5-6-7")
	v.SetDefault("SCHEDULER_MAX_CLASSES_PER_DAY", 4)
	v.SetDefault("SCHEDULER_MAX_CLASSES_PER_WEEK", 18)
	v.SetDefault("SCHEDULER_MIN_ACADEMIC_PER_DAY", 3)
	v.SetDefault("SCHEDULER_PILLARS", "Library,PET")
	v.SetDefault("SCHEDULER_FACULTY_FALLBACK", "department")
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_PARALLEL", true)

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)
	v.SetDefault("NOTIFY_BUFFER", 256)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("LEAVE_MAX_DAYS", 31)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseBlocks reads "2-3-4,5-6-7" into period blocks. Malformed blocks are skipped.
func parseBlocks(raw string) [][]int {
	var blocks [][]int
	for _, part := range splitAndTrim(raw) {
		fields := strings.Split(part, "-")
		block := make([]int, 0, len(fields))
		for _, field := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				block = nil
				break
			}
			block = append(block, n)
		}
		if len(block) > 0 {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
