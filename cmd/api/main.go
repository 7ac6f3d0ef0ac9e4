package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/wardlink/clinic-comms-platform/cmd/mainconfig"
	"github.com/wardlink/clinic-comms-platform/internal/api/router"
	"github.com/wardlink/clinic-comms-platform/internal/approval"
	"github.com/wardlink/clinic-comms-platform/internal/calendar"
	appconfig "github.com/wardlink/clinic-comms-platform/internal/config"
	"github.com/wardlink/clinic-comms-platform/internal/conversation"
	"github.com/wardlink/clinic-comms-platform/internal/decision"
	"github.com/wardlink/clinic-comms-platform/internal/escalation"
	"github.com/wardlink/clinic-comms-platform/internal/gateway"
	"github.com/wardlink/clinic-comms-platform/internal/http/handlers"
	"github.com/wardlink/clinic-comms-platform/internal/identity"
	"github.com/wardlink/clinic-comms-platform/internal/llm"
	"github.com/wardlink/clinic-comms-platform/internal/messaging"
	"github.com/wardlink/clinic-comms-platform/internal/notify"
	obsmetrics "github.com/wardlink/clinic-comms-platform/internal/observability/metrics"
	"github.com/wardlink/clinic-comms-platform/internal/personalctx"
	"github.com/wardlink/clinic-comms-platform/internal/retrieval"
	"github.com/wardlink/clinic-comms-platform/internal/scheduling"
	"github.com/wardlink/clinic-comms-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-comms-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := newRedisClient(cfg)
	defer func() { _ = redisClient.Close() }()

	metricsHandler, metrics := setupPlatformMetrics()

	// Identity and clinical context.
	identityRepo := identity.NewPostgresRepository(pool)
	resolver := identity.NewResolver(identityRepo, logger)
	personalFetcher := personalctx.NewCachedFetcher(personalctx.NewPostgresRepository(pool), cfg.PersonalContextTTL, logger)

	// Knowledge retrieval.
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey)
	vectorStore := retrieval.NewVectorStore(openaiClient, cfg.EmbeddingModelID, logger)
	searchCache := retrieval.NewCache(vectorStore, cfg.RetrievalCacheTTL, logger)

	// Workflow state tables.
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sessionStore := scheduling.NewSessionStore(dynamoClient, cfg.SessionsTable, logger)
	requestStore := approval.NewRequestStore(dynamoClient, cfg.MeetingRequestsTable, cfg.ProviderPhoneIndex, logger)
	escalationStore := escalation.NewStore(dynamoClient, cfg.EscalationsTable, logger)

	// Outbound surfaces.
	gatewaySender := gateway.NewSender(cfg.GatewayBaseURL, cfg.GatewaySendTimeout, logger)
	emailSender := buildEmailSender(awsCfg, cfg, logger)

	var archiver *escalation.Archiver
	if cfg.MediaArchiveBucket != "" {
		archiver = escalation.NewArchiver(s3.NewFromConfig(awsCfg), cfg.MediaArchiveBucket, logger)
	}
	notifier := escalation.NewNotifier(identityRepo, gatewaySender, emailSender, logger)
	escalationService := escalation.NewService(escalationStore, archiver, notifier, logger).WithMetrics(metrics)

	// Calendar and approval workflow.
	calendarClient, err := calendar.NewGoogleClient(ctx, calendar.GoogleConfig{
		ServiceAccountEmail: cfg.CalendarServiceAccountEmail,
		PrivateKey:          cfg.CalendarPrivateKey,
		CalendarID:          cfg.CalendarID,
		Timezone:            cfg.CalendarTimezone,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize calendar client", "error", err)
		os.Exit(1)
	}
	workflow := approval.NewWorkflow(requestStore, calendarClient, gatewaySender, cfg.CalendarTimezone, logger).WithMetrics(metrics)
	schedulingManager := scheduling.NewManager(sessionStore, identityRepo, workflow, cfg.CalendarTimezone, logger)

	llmClient := buildLLMClient(ctx, awsCfg, cfg, metrics, logger)

	engine := decision.NewEngine(llmClient, searchCache, personalFetcher, escalationService, identityRepo, schedulingManager, workflow, cfg.BedrockModelID, logger)

	// Conversation pipeline and queue.
	historyStore := conversation.NewHistoryStore(redisClient)
	pipeline := conversation.NewPipeline(resolver, engine, historyStore, logger).WithMetrics(metrics)

	queue := buildQueue(awsCfg, cfg, logger)
	publisher := conversation.NewPublisher(queue, logger)
	worker := conversation.NewWorker(pipeline, queue, gatewaySender, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
		conversation.WithMetrics(metrics),
	)
	worker.Start(ctx)

	sweeper := approval.NewSweeper(requestStore, cfg.ApprovalSweepEvery, logger)
	go sweeper.Run(ctx)

	messagingHandler := messaging.NewHandler(publisher, logger).WithMetrics(metrics)
	dashboardHandler := handlers.NewDashboardHandler(escalationStore, requestStore, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		MessagingHandler:   messagingHandler,
		DashboardHandler:   dashboardHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: []string{cfg.PublicBaseURL},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	worker.Wait()
	logger.Info("server stopped")
}

// setupPlatformMetrics registers platform metrics on a dedicated registry
// and returns the /metrics handler alongside them.
func setupPlatformMetrics() (http.Handler, *obsmetrics.PlatformMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	m := obsmetrics.NewPlatformMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	return pool
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

func buildEmailSender(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	case "ses":
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger); sender != nil {
			return sender
		}
	}
	return notify.NewStubEmailSender(logger)
}

// buildLLMClient wires Bedrock as the primary provider with Gemini as the
// retry-once fallback when an API key is configured.
func buildLLMClient(ctx context.Context, awsCfg aws.Config, cfg *appconfig.Config, metrics *obsmetrics.PlatformMetrics, logger *logging.Logger) llm.Client {
	primary := llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))

	var fallback llm.Client
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini fallback unavailable", "error", err)
		} else {
			fallback = gemini
		}
	}
	return llm.NewFallbackClient(primary, fallback, logger).WithObserver(metrics)
}

func buildQueue(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) conversation.Queue {
	if cfg.UseMemoryQueue || cfg.ConversationQueueURL == "" {
		logger.Info("using in-memory conversation queue")
		return conversation.NewMemoryQueue(256)
	}
	return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)
}
