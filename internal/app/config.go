package app

import (
	"strings"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/utils"
)

type Config struct {
	AppEnv  string
	LogMode string
	Port    string

	AllowedOrigins []string

	// CallbackBaseURL is the public base workers use to reach the callback
	// endpoint.
	CallbackBaseURL string

	RedisAddr       string
	QueueStream     string
	QueueFIFO       bool
	EventBusEnabled bool
	EventBusChannel string

	OtelEnabled bool
}

func LoadConfig(log *logger.Logger) *Config {
	origins := strings.Split(utils.GetEnv("ALLOWED_ORIGINS", "http://localhost:3000", log), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		AppEnv:          utils.GetEnv("APP_ENV", "dev", log),
		LogMode:         utils.GetEnv("LOG_MODE", "dev", log),
		Port:            utils.GetEnv("PORT", "8080", log),
		AllowedOrigins:  origins,
		CallbackBaseURL: utils.GetEnv("JOB_CALLBACK_BASE_URL", "http://localhost:8080", log),
		RedisAddr:       utils.GetEnv("REDIS_ADDR", "", log),
		QueueStream:     utils.GetEnv("JOB_QUEUE_STREAM", "jobs", log),
		QueueFIFO:       utils.GetEnvAsBool("JOB_QUEUE_FIFO", true, log),
		EventBusEnabled: utils.GetEnvAsBool("EVENT_BUS_ENABLED", false, log),
		EventBusChannel: utils.GetEnv("EVENT_BUS_CHANNEL", "dubpilot:events", log),
		OtelEnabled:     utils.GetEnvAsBool("OTEL_ENABLED", false, log),
	}
}
