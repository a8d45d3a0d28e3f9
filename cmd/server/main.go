package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lectureqa/backend/internal/answer"
	"github.com/lectureqa/backend/internal/api"
	"github.com/lectureqa/backend/internal/cache"
	"github.com/lectureqa/backend/internal/config"
	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/health"
	"github.com/lectureqa/backend/internal/logger"
	"github.com/lectureqa/backend/internal/media"
	"github.com/lectureqa/backend/internal/metrics"
	"github.com/lectureqa/backend/internal/middleware"
	"github.com/lectureqa/backend/internal/notify"
	"github.com/lectureqa/backend/internal/pipeline"
	"github.com/lectureqa/backend/internal/registry"
	"github.com/lectureqa/backend/internal/storage"
	"github.com/lectureqa/backend/internal/stream"
	"github.com/lectureqa/backend/internal/transcriber"
	"github.com/lectureqa/backend/internal/transcript"
	"github.com/lectureqa/backend/internal/validators"
	"github.com/lectureqa/backend/internal/websocket"
	"github.com/lectureqa/backend/internal/ytdlp"
)

func main() {
	cfg := config.Load()

	if !cfg.HasCompletionAPI() {
		log.Fatal("OPENAI_API_KEY is required")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Job status registry; Redis when configured, per-process otherwise.
	var reg registry.Registry
	var redisReg *registry.RedisRegistry
	if cfg.RedisAddr != "" {
		redisURL := cfg.RedisAddr
		if !strings.Contains(redisURL, "://") {
			redisURL = "redis://" + redisURL
		}
		var err error
		redisReg, err = registry.NewRedisRegistry(redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisReg.Close()
		reg = redisReg
	} else {
		reg = registry.NewMemoryRegistry()
	}

	// Progress fan-out: every registry write is pushed to subscribed
	// WebSocket clients.
	hub := websocket.NewHub()
	go hub.Run()
	notifyingReg := websocket.NewNotifyingRegistry(reg, hub)

	// Transcript store; Postgres when configured, files otherwise.
	var store transcript.Store
	var pgStore *transcript.PostgresStore
	if cfg.PostgresDSN != "" {
		var err error
		pgStore, err = transcript.NewPostgresStore(cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		fs, err := transcript.NewFileStore(filepath.Join(cfg.DataDir, "transcripts"))
		if err != nil {
			log.Fatalf("Failed to create transcript store: %v", err)
		}
		store = fs
	}
	if redisReg != nil {
		store = cache.NewTranscriptStore(store, cache.NewFromClient(redisReg.Client()))
	}

	aiConfig := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIBaseURL != "" {
		aiConfig.BaseURL = cfg.OpenAIBaseURL
	}
	aiClient := openai.NewClientWithConfig(aiConfig)

	fetcher, err := ytdlp.New(&ytdlp.Config{
		TempDir:     filepath.Join(cfg.DataDir, "media"),
		YtdlpPath:   cfg.YtdlpPath,
		CookiesFile: cfg.CookiesFile,
	})
	if err != nil {
		log.Fatalf("Failed to initialize downloader: %v", err)
	}

	processor := media.NewProcessor(&media.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
	})

	retryCfg := apperrors.TranscriptionRetryConfig()
	retryCfg.MaxRetries = cfg.TranscribeRetryAttempts
	driver := transcriber.NewDriver(
		transcriber.NewWhisperProvider(aiClient, cfg.TranscriptionModel),
		retryCfg,
		cfg.ChunkTranscribeTimeout,
	)

	orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		DataDir:             cfg.DataDir,
		MaxDurationSeconds:  cfg.MaxDurationSeconds,
		ChunkThresholdBytes: cfg.ChunkThresholdBytes,
		DownloadTimeout:     cfg.DownloadTimeout,
	}, notifyingReg, store, fetcher, processor, driver)

	// Optional object storage mirror for completed artifacts.
	var storageClient *storage.Client
	if cfg.MinioEndpoint != "" {
		storageClient, err = storage.New(&storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := storageClient.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to ensure storage bucket: %v", err)
		}
		cancel()
		orch.SetMirror(storage.NewMirror(storageClient))
	}

	pool := pipeline.NewWorkerPool(orch, &pipeline.WorkerPoolConfig{
		WorkerCount: cfg.WorkerCount,
		JobTimeout:  cfg.JobTimeout,
	})
	pool.Start()

	service := pipeline.NewService(notifyingReg, store, orch, pool, validators.DefaultRegistry())

	streamer := answer.NewStreamer(
		answer.NewOpenAICompleter(aiClient, cfg.ChatModel),
		transcript.NewSelector(cfg.ContextWindowSeconds, cfg.FullTranscriptSeconds),
	)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.ResendAPIKey != "" && cfg.InstructorEmail != "" {
		notifier = notify.NewResend(cfg.ResendAPIKey, cfg.FromEmail, cfg.InstructorEmail)
	}

	healthCfg := &health.CheckerConfig{
		YtdlpPath:   cfg.YtdlpPath,
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		DataDir:     cfg.DataDir,
		Version:     version,
	}
	if pgStore != nil {
		healthCfg.DB = pgStore.DB()
	}
	if redisReg != nil {
		healthCfg.Redis = redisReg.Client()
	}
	if storageClient != nil {
		healthCfg.StorageCheck = storageClient.Ping
	}

	m := metrics.Default()
	go trackGauges(m, pool, streamer, hub)

	router := api.NewRouter(
		api.NewVideoHandlers(service),
		api.NewQuestionHandler(service, streamer),
		api.NewFeedbackHandler(service, notifier),
		stream.NewHandler(service, storageClient),
		websocket.NewHandler(hub, notifyingReg),
		health.NewHandler(health.NewChecker(healthCfg)),
		m,
	)

	httpLog := logger.WithComponent("http")
	handler := middleware.Chain(router,
		middleware.Recoverer(httpLog),
		middleware.RequestID,
		middleware.Logging(httpLog),
		middleware.CORS(cfg.CORSOrigins),
		metrics.Middleware(m),
	)

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		log.Printf("Starting server on %s", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := service.Shutdown(ctx); err != nil {
		log.Printf("Pipeline shutdown error: %v", err)
	}
}

const version = "1.0.0"

// trackGauges samples queue, session and connection gauges for the
// metrics endpoint.
func trackGauges(m *metrics.Metrics, pool *pipeline.WorkerPool, streamer *answer.Streamer, hub *websocket.Hub) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.SetPipelineQueueLength(int64(pool.QueueLength()))
		m.SetAnswerSessions(streamer.ActiveSessions())
		m.SetWSConnections(int64(hub.TotalClients()))
	}
}
