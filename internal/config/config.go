package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Messaging gateway (outbound WhatsApp sends).
	GatewayBaseURL     string
	GatewaySendTimeout time.Duration

	// Relational store (patients, providers, visitors, clinical context).
	DatabaseURL string

	// AWS / LocalStack.
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Conversation job queue.
	UseMemoryQueue       bool
	WorkerCount          int
	ConversationQueueURL string

	// Workflow state tables.
	SessionsTable        string
	MeetingRequestsTable string
	EscalationsTable     string
	ProviderPhoneIndex   string

	// LLM providers.
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	OpenAIAPIKey     string
	EmbeddingModelID string

	// Redis (conversation history).
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Google Calendar (service account).
	CalendarServiceAccountEmail string
	CalendarPrivateKey          string
	CalendarID                  string
	CalendarTimezone            string

	// Escalation email fan-out.
	EmailProvider     string
	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Escalation media archive.
	MediaArchiveBucket string

	// Cache and workflow windows.
	RetrievalCacheTTL  time.Duration
	PersonalContextTTL time.Duration
	SessionTTL         time.Duration
	ApprovalTTL        time.Duration
	ApprovalSweepEvery time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		GatewayBaseURL:     strings.TrimRight(getEnv("GATEWAY_BASE_URL", ""), "/"),
		GatewaySendTimeout: getEnvAsDuration("GATEWAY_SEND_TIMEOUT", 10*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		UseMemoryQueue:       getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),

		SessionsTable:        getEnv("SCHEDULING_SESSIONS_TABLE", "scheduling_sessions"),
		MeetingRequestsTable: getEnv("MEETING_REQUESTS_TABLE", "meeting_requests"),
		EscalationsTable:     getEnv("ESCALATIONS_TABLE", "escalations"),
		ProviderPhoneIndex:   getEnv("MEETING_REQUESTS_PROVIDER_INDEX", "providerPhone-createdAt-index"),

		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		EmbeddingModelID: getEnv("EMBEDDING_MODEL_ID", "text-embedding-3-small"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CalendarServiceAccountEmail: getEnv("CALENDAR_SA_EMAIL", ""),
		CalendarPrivateKey:          getEnv("CALENDAR_SA_PRIVATE_KEY", ""),
		CalendarID:                  getEnv("CALENDAR_ID", "primary"),
		CalendarTimezone:            getEnv("CALENDAR_TIMEZONE", "UTC"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "ses"))),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Wardlink"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Wardlink"),

		MediaArchiveBucket: getEnv("MEDIA_ARCHIVE_BUCKET", ""),

		RetrievalCacheTTL:  getEnvAsDuration("RETRIEVAL_CACHE_TTL", 4*time.Minute),
		PersonalContextTTL: getEnvAsDuration("PERSONAL_CONTEXT_TTL", 2*time.Minute),
		SessionTTL:         getEnvAsDuration("SCHEDULING_SESSION_TTL", 30*time.Minute),
		ApprovalTTL:        getEnvAsDuration("APPROVAL_REQUEST_TTL", 2*time.Hour),
		ApprovalSweepEvery: getEnvAsDuration("APPROVAL_SWEEP_INTERVAL", 5*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
