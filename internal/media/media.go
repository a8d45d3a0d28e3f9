package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// runner executes external commands; swapped out in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Config holds paths to the media tools
type Config struct {
	FFmpegPath  string
	FFprobePath string
}

// DefaultConfig returns a config that expects the tools on PATH
func DefaultConfig() *Config {
	return &Config{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Processor wraps ffmpeg/ffprobe for audio extraction and chunking
type Processor struct {
	cfg *Config
	run runner
}

// NewProcessor creates a media processor
func NewProcessor(cfg *Config) *Processor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Processor{cfg: cfg, run: execRunner}
}

// ExtractAudio strips the video track and encodes MP3 audio into audioPath.
func (p *Processor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	args := []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "4",
		"-y",
		audioPath,
	}

	if _, err := p.run(ctx, p.cfg.FFmpegPath, args...); err != nil {
		return fmt.Errorf("audio extraction: %w", err)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return fmt.Errorf("audio extraction produced no output: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("audio extraction produced empty output")
	}

	return nil
}

// Duration returns the media duration in seconds via ffprobe.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, err := p.run(ctx, p.cfg.FFprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("duration probe: %w", err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("duration probe: unparseable output %q: %w", strings.TrimSpace(string(out)), err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("duration probe: non-positive duration %v", dur)
	}

	return dur, nil
}

// cutChunk copies a time slice of the audio file without re-encoding.
func (p *Processor) cutChunk(ctx context.Context, audioPath string, start, length float64, outPath string) error {
	args := []string{
		"-i", audioPath,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-acodec", "copy",
		"-y",
		outPath,
	}

	if _, err := p.run(ctx, p.cfg.FFmpegPath, args...); err != nil {
		return fmt.Errorf("chunk cut at %s: %w", formatSeconds(start), err)
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
