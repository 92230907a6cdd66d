package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueName   string
	WorkerCount int

	EngineURL          string
	EngineAuthToken    string
	EnginePollInterval time.Duration
	EngineCallTimeout  time.Duration

	// CaseMaxRetries bounds retries of an unavailable engine per test case.
	// PipelineAttempts bounds whole-pipeline retries per submission.
	CaseMaxRetries   int
	PipelineAttempts int

	DefaultTimeLimitMs   int
	DefaultMemoryLimitKb int

	// RevealHiddenDiagnostics controls whether failing hidden test cases
	// expose their output to the submitter. Off by default.
	RevealHiddenDiagnostics bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		APIPort:    getEnv("API_PORT", "8080"),
		JWTKey:     []byte(getEnv("JWT_SECRET", "defaultsecret")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "codecourt_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		QueueName:   getEnv("EVALUATION_QUEUE_NAME", "evaluation_jobs_queue"),
		WorkerCount: getEnvAsInt("WORKER_COUNT", 4),

		EngineURL:          getEnv("ENGINE_URL", "http://localhost:2358"),
		EngineAuthToken:    getEnv("ENGINE_AUTH_TOKEN", ""),
		EnginePollInterval: time.Duration(getEnvAsInt("ENGINE_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		EngineCallTimeout:  time.Duration(getEnvAsInt("ENGINE_CALL_TIMEOUT_SECONDS", 30)) * time.Second,

		CaseMaxRetries:   getEnvAsInt("CASE_MAX_RETRIES", 3),
		PipelineAttempts: getEnvAsInt("PIPELINE_ATTEMPTS", 2),

		DefaultTimeLimitMs:   getEnvAsInt("DEFAULT_TIME_LIMIT_MS", 2000),
		DefaultMemoryLimitKb: getEnvAsInt("DEFAULT_MEMORY_LIMIT_KB", 262144),

		RevealHiddenDiagnostics: getEnvAsBool("REVEAL_HIDDEN_DIAGNOSTICS", false),
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}
