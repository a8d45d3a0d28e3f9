package ytdlp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Config holds configuration for the yt-dlp service
type Config struct {
	// TempDir is the directory for temporary downloads
	TempDir string
	// YtdlpPath is the path to yt-dlp binary (default: "yt-dlp")
	YtdlpPath string
	// CookiesFile is an optional Netscape cookies file passed to yt-dlp,
	// needed for sources that gate playback behind a session
	CookiesFile string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TempDir:   os.TempDir(),
		YtdlpPath: "yt-dlp",
	}
}

// Service wraps yt-dlp for single-video downloads
type Service struct {
	cfg *Config
}

// New creates a new yt-dlp service
func New(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Verify yt-dlp is available
	if _, err := exec.LookPath(cfg.YtdlpPath); err != nil {
		return nil, ErrYtdlpNotFound
	}

	// Ensure temp directory exists
	if err := os.MkdirAll(cfg.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &Service{cfg: cfg}, nil
}

// DownloadResult contains the result of a download operation
type DownloadResult struct {
	FilePath string
	Metadata *Metadata
}

// ProgressCallback is called during download with progress updates
type ProgressCallback func(percent float64, status string)

// Probe retrieves metadata for a URL without downloading. The caller uses
// the reported duration to reject oversized videos before any bytes move.
func (s *Service) Probe(ctx context.Context, sourceURL string) (*Metadata, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	args := []string{
		"--dump-json",
		"--no-download",
		"--no-playlist",
		"--no-warnings",
	}
	args = s.appendCookies(args)
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, s.cfg.YtdlpPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, classifyStderr(sourceURL, err, string(exitErr.Stderr))
		}
		return nil, classifyStderr(sourceURL, err, "")
	}

	var probed probeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return nil, &DownloadError{URL: sourceURL, Message: "failed to parse metadata", Err: err}
	}

	if probed.Type == "playlist" {
		return nil, &DownloadError{URL: sourceURL, Message: "url resolves to a playlist", Err: ErrPlaylistNotSupported}
	}

	return probed.toMetadata(), nil
}

// Download fetches the video at sourceURL into the temp directory and
// returns the resulting file path. Audio extraction is downstream work;
// this keeps the original container so the file can also be served back.
// Callers that already probed the URL pass the metadata in; a nil meta
// makes Download run its own probe.
func (s *Service) Download(ctx context.Context, sourceURL string, outputID string, meta *Metadata, progress ProgressCallback) (*DownloadResult, error) {
	if err := validateURL(sourceURL); err != nil {
		return nil, err
	}

	metadata := meta
	if metadata == nil {
		var err error
		metadata, err = s.Probe(ctx, sourceURL)
		if err != nil {
			return nil, err
		}
	}

	outputTemplate := filepath.Join(s.cfg.TempDir, outputID+".%(ext)s")
	args := buildDownloadArgs(outputTemplate, s.cfg.CookiesFile, sourceURL)

	cmd := exec.CommandContext(ctx, s.cfg.YtdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &DownloadError{URL: sourceURL, Message: "failed to create stdout pipe", Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &DownloadError{URL: sourceURL, Message: "failed to create stderr pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, classifyStderr(sourceURL, err, "")
	}

	var stderrOutput strings.Builder
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			stderrOutput.WriteString(scanner.Text())
			stderrOutput.WriteString("\n")
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if progress == nil {
			continue
		}
		percent, status := parseProgress(scanner.Text())
		if status != "" {
			progress(percent, status)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, classifyStderr(sourceURL, err, stderrOutput.String())
	}

	outputPath, err := s.findOutput(outputID)
	if err != nil {
		return nil, &DownloadError{URL: sourceURL, Message: "output file not found", Err: ErrDownloadFailed}
	}

	return &DownloadResult{
		FilePath: outputPath,
		Metadata: metadata,
	}, nil
}

// findOutput locates the downloaded file; the extension depends on what
// format yt-dlp settled on.
func (s *Service) findOutput(outputID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.cfg.TempDir, outputID+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", ErrDownloadFailed
}

func (s *Service) appendCookies(args []string) []string {
	if s.cfg.CookiesFile == "" {
		return args
	}
	if _, err := os.Stat(s.cfg.CookiesFile); err != nil {
		return args
	}
	return append(args, "--cookies", s.cfg.CookiesFile)
}

// buildDownloadArgs assembles the yt-dlp invocation for a single video.
func buildDownloadArgs(outputTemplate, cookiesFile, sourceURL string) []string {
	args := []string{
		"-f", "best[ext=mp4]/best",
		"--no-playlist",
		"--output", outputTemplate,
		"--newline",
		"--progress",
		"--no-warnings",
	}
	if cookiesFile != "" {
		if _, err := os.Stat(cookiesFile); err == nil {
			args = append(args, "--cookies", cookiesFile)
		}
	}
	return append(args, sourceURL)
}

// validateURL checks basic URL shape before handing it to yt-dlp
func validateURL(sourceURL string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return &DownloadError{URL: sourceURL, Message: "invalid url", Err: ErrInvalidURL}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &DownloadError{URL: sourceURL, Message: "invalid url scheme", Err: ErrInvalidURL}
	}

	if parsed.Host == "" {
		return &DownloadError{URL: sourceURL, Message: "invalid url", Err: ErrInvalidURL}
	}

	return nil
}

// classifyStderr converts yt-dlp errors into specific error types
func classifyStderr(sourceURL string, err error, stderr string) error {
	stderrLower := strings.ToLower(stderr)

	switch {
	case strings.Contains(stderrLower, "playlist") &&
		strings.Contains(stderrLower, "not supported"):
		return &DownloadError{URL: sourceURL, Message: "playlist not supported", Err: ErrPlaylistNotSupported}

	case strings.Contains(stderrLower, "video unavailable") ||
		strings.Contains(stderrLower, "this video is unavailable"):
		return &DownloadError{URL: sourceURL, Message: "video unavailable", Err: ErrVideoUnavailable}

	case strings.Contains(stderrLower, "private video") ||
		strings.Contains(stderrLower, "is private"):
		return &DownloadError{URL: sourceURL, Message: "video is private", Err: ErrVideoPrivate}

	case strings.Contains(stderrLower, "sign in to confirm") ||
		strings.Contains(stderrLower, "login required") ||
		strings.Contains(stderrLower, "use --cookies"):
		return &DownloadError{URL: sourceURL, Message: "sign-in required", Err: ErrSignInRequired}

	case strings.Contains(stderrLower, "unable to download") ||
		strings.Contains(stderrLower, "connection") ||
		strings.Contains(stderrLower, "network") ||
		strings.Contains(stderrLower, "timed out"):
		return &DownloadError{URL: sourceURL, Message: "network error", Err: ErrNetworkError}

	case strings.Contains(stderrLower, "unsupported url") ||
		strings.Contains(stderrLower, "no suitable extractor"):
		return &DownloadError{URL: sourceURL, Message: "url not supported", Err: ErrURLNotSupported}

	default:
		return &DownloadError{URL: sourceURL, Message: "download failed", Err: fmt.Errorf("%w: %s", ErrDownloadFailed, strings.TrimSpace(stderr))}
	}
}

// parseProgress extracts progress percentage and status from yt-dlp output
func parseProgress(line string) (percent float64, status string) {
	line = strings.TrimSpace(line)

	// yt-dlp progress format: [download]  45.2% of 5.00MiB at 1.00MiB/s ETA 00:03
	if strings.HasPrefix(line, "[download]") {
		parts := strings.Fields(line)
		if len(parts) >= 2 && strings.HasSuffix(parts[1], "%") {
			percentStr := strings.TrimSuffix(parts[1], "%")
			fmt.Sscanf(percentStr, "%f", &percent)
			status = "downloading"
		}
	} else if strings.Contains(line, "Destination:") {
		status = "downloading"
	} else if strings.HasPrefix(line, "[Merger]") {
		percent = 100
		status = "merging"
	}

	return percent, status
}
