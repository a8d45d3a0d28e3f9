package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerAddr  string
	DataDir     string
	CORSOrigins []string

	// Policy tunables
	MaxDurationSeconds      int
	ChunkThresholdBytes     int64
	ContextWindowSeconds    float64
	FullTranscriptSeconds   float64
	WorkerCount             int
	JobTimeout              time.Duration
	DownloadTimeout         time.Duration
	ChunkTranscribeTimeout  time.Duration
	TranscribeRetryAttempts int

	// OpenAI-compatible API
	OpenAIKey          string
	OpenAIBaseURL      string
	TranscriptionModel string
	ChatModel          string

	// External tools
	YtdlpPath   string
	FFmpegPath  string
	FFprobePath string
	CookiesFile string

	// Optional backends
	RedisAddr   string
	PostgresDSN string

	// MinIO/S3 artifact mirror (optional)
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Instructor escalation (optional)
	ResendAPIKey    string
	InstructorEmail string
	FromEmail       string
}

func Load() *Config {
	maxDuration, _ := strconv.Atoi(getEnvOrDefault("MAX_DURATION_SECONDS", "300"))
	if maxDuration <= 0 {
		maxDuration = 300
	}

	chunkThreshold, _ := strconv.ParseInt(getEnvOrDefault("CHUNK_THRESHOLD_BYTES", "26214400"), 10, 64)
	if chunkThreshold <= 0 {
		chunkThreshold = 25 << 20
	}

	contextWindow, _ := strconv.ParseFloat(getEnvOrDefault("CONTEXT_WINDOW_SECONDS", "120"), 64)
	if contextWindow <= 0 {
		contextWindow = 120
	}

	fullTranscript, _ := strconv.ParseFloat(getEnvOrDefault("FULL_TRANSCRIPT_SECONDS", "300"), 64)
	if fullTranscript <= 0 {
		fullTranscript = 300
	}

	workerCount, _ := strconv.Atoi(getEnvOrDefault("WORKER_COUNT", "2"))
	if workerCount <= 0 {
		workerCount = 2
	}

	retryAttempts, _ := strconv.Atoi(getEnvOrDefault("TRANSCRIBE_RETRY_ATTEMPTS", "2"))
	if retryAttempts < 0 {
		retryAttempts = 2
	}

	minioUseSSL, _ := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", "false"))

	return &Config{
		ServerAddr:  getEnvOrDefault("SERVER_ADDR", ":8080"),
		DataDir:     getEnvOrDefault("DATA_DIR", filepath.Join(".", "data")),
		CORSOrigins: strings.Split(getEnvOrDefault("CORS_ORIGINS", "*"), ","),

		MaxDurationSeconds:      maxDuration,
		ChunkThresholdBytes:     chunkThreshold,
		ContextWindowSeconds:    contextWindow,
		FullTranscriptSeconds:   fullTranscript,
		WorkerCount:             workerCount,
		JobTimeout:              getDurationOrDefault("JOB_TIMEOUT", 15*time.Minute),
		DownloadTimeout:         getDurationOrDefault("DOWNLOAD_TIMEOUT", 5*time.Minute),
		ChunkTranscribeTimeout:  getDurationOrDefault("CHUNK_TRANSCRIBE_TIMEOUT", 2*time.Minute),
		TranscribeRetryAttempts: retryAttempts,

		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		TranscriptionModel: getEnvOrDefault("TRANSCRIPTION_MODEL", "whisper-1"),
		ChatModel:          getEnvOrDefault("CHAT_MODEL", "gpt-4o-mini"),

		YtdlpPath:   getEnvOrDefault("YTDLP_PATH", "yt-dlp"),
		FFmpegPath:  getEnvOrDefault("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnvOrDefault("FFPROBE_PATH", "ffprobe"),
		CookiesFile: os.Getenv("COOKIES_FILE"),

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "lecture-media"),
		MinioUseSSL:    minioUseSSL,

		ResendAPIKey:    os.Getenv("RESEND_API_KEY"),
		InstructorEmail: os.Getenv("INSTRUCTOR_EMAIL"),
		FromEmail:       getEnvOrDefault("FROM_EMAIL", "Lecture QA <onboarding@resend.dev>"),
	}
}

// HasCompletionAPI reports whether an API key is configured for the
// transcription and completion services.
func (c *Config) HasCompletionAPI() bool {
	return c.OpenAIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
