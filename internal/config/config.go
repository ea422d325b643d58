package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIPort           string
	LogLevel          string
	APIRateLimitRPS   float64
	APIRateLimitBurst int

	ServerBaseURL     string
	ServerTimeout     time.Duration
	ServerCSRFToken   string
	ServerSessionID   string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	TransferTimeout   time.Duration
	RetryMaxAttempts  int
	RetryBackoff      time.Duration
	BreakerEnabled    bool
	BreakerMinRequest int

	NATSURL     string
	NATSSubject string

	AutosaveInterval time.Duration
	ConfirmMode      string
	MetricsEnabled   bool

	FilesBasePath string
	QuestionFile  string
	Question      QuestionSettings
}

func Load() Config {
	return Config{
		APIPort:           mustEnv("API_PORT", "8090"),
		LogLevel:          mustEnv("LOG_LEVEL", "info"),
		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),

		ServerBaseURL:     mustEnv("ORA_BASE_URL", "http://localhost:8000/courses/xblock/ora"),
		ServerTimeout:     mustEnvDuration("ORA_TIMEOUT", 30*time.Second),
		ServerCSRFToken:   mustEnv("ORA_CSRF_TOKEN", ""),
		ServerSessionID:   mustEnv("ORA_SESSION_ID", ""),
		PollInterval:      mustEnvDuration("ORA_POLL_INTERVAL", time.Second),
		PollTimeout:       mustEnvDuration("ORA_POLL_TIMEOUT", 2*time.Minute),
		RateLimitRPS:      mustEnvFloat("ORA_RATE_LIMIT_RPS", 5),
		RateLimitBurst:    mustEnvInt("ORA_RATE_LIMIT_BURST", 5),
		TransferTimeout:   mustEnvDuration("ORA_TRANSFER_TIMEOUT", 5*time.Minute),
		RetryMaxAttempts:  mustEnvInt("ORA_RETRY_MAX_ATTEMPTS", 1),
		RetryBackoff:      mustEnvDuration("ORA_RETRY_BACKOFF", 200*time.Millisecond),
		BreakerEnabled:    mustEnvBool("ORA_BREAKER_ENABLED", true),
		BreakerMinRequest: mustEnvInt("ORA_BREAKER_MIN_REQUESTS", 10),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "ora.workflow.advance"),

		AutosaveInterval: mustEnvDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		ConfirmMode:      strings.ToLower(mustEnv("CONFIRM_MODE", "prompt")),
		MetricsEnabled:   mustEnvBool("METRICS_ENABLED", true),

		FilesBasePath: mustEnv("FILES_BASE_PATH", "."),
		QuestionFile:  mustEnv("QUESTION_FILE", ""),
		Question: QuestionSettings{
			ProblemName:       mustEnv("QUESTION_PROBLEM_NAME", ""),
			TextResponse:      mustEnv("QUESTION_TEXT_RESPONSE", "required"),
			FileUploadMode:    mustEnv("QUESTION_FILE_UPLOAD_RESPONSE", ""),
			FileUploadType:    mustEnv("QUESTION_FILE_UPLOAD_TYPE", ""),
			AllowedExtensions: mustEnvList("QUESTION_ALLOWED_EXTENSIONS"),
			MaxTotalBytes:     int64(mustEnvInt("QUESTION_MAX_TOTAL_BYTES", 5*1024*1024)),
			MaxFiles:          mustEnvInt("QUESTION_MAX_FILES", 0),
			Text:              mustEnv("RESPONSE_TEXT", ""),
			Language:          mustEnv("RESPONSE_LANGUAGE", ""),
		},
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("45s") and bare seconds ("45").
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func mustEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
