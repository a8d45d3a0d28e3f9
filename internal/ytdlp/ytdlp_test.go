package ytdlp

import (
	"errors"
	"strings"
	"testing"
)

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantPercent float64
		wantStatus  string
	}{
		{
			name:        "download progress line",
			line:        "[download]  45.2% of 5.00MiB at 1.00MiB/s ETA 00:03",
			wantPercent: 45.2,
			wantStatus:  "downloading",
		},
		{
			name:        "completed download",
			line:        "[download] 100% of 5.00MiB in 00:05",
			wantPercent: 100,
			wantStatus:  "downloading",
		},
		{
			name:        "destination line",
			line:        "[download] Destination: /tmp/abc123.mp4",
			wantStatus:  "downloading",
			wantPercent: 0,
		},
		{
			name:        "merger line",
			line:        "[Merger] Merging formats into \"/tmp/abc123.mp4\"",
			wantPercent: 100,
			wantStatus:  "merging",
		},
		{
			name:       "unrelated line",
			line:       "[youtube] abc123: Downloading webpage",
			wantStatus: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			percent, status := parseProgress(tt.line)
			if percent != tt.wantPercent {
				t.Errorf("percent = %v, want %v", percent, tt.wantPercent)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
		})
	}
}

func TestClassifyStderr(t *testing.T) {
	base := errors.New("exit status 1")

	tests := []struct {
		name    string
		stderr  string
		wantErr error
	}{
		{
			name:    "playlist",
			stderr:  "ERROR: Playlist downloads are not supported here",
			wantErr: ErrPlaylistNotSupported,
		},
		{
			name:    "unavailable",
			stderr:  "ERROR: Video unavailable",
			wantErr: ErrVideoUnavailable,
		},
		{
			name:    "private",
			stderr:  "ERROR: This video is private",
			wantErr: ErrVideoPrivate,
		},
		{
			name:    "sign-in required",
			stderr:  "ERROR: Sign in to confirm you're not a bot. Use --cookies for authentication",
			wantErr: ErrSignInRequired,
		},
		{
			name:    "network",
			stderr:  "ERROR: Unable to download webpage: connection reset by peer",
			wantErr: ErrNetworkError,
		},
		{
			name:    "unsupported",
			stderr:  "ERROR: Unsupported URL: https://example.com",
			wantErr: ErrURLNotSupported,
		},
		{
			name:    "unknown falls back to download failed",
			stderr:  "ERROR: something entirely new",
			wantErr: ErrDownloadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStderr("https://example.com/v", base, tt.stderr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("classifyStderr() = %v, want errors.Is %v", err, tt.wantErr)
			}

			var dlErr *DownloadError
			if !errors.As(err, &dlErr) {
				t.Fatalf("expected *DownloadError, got %T", err)
			}
			if dlErr.URL != "https://example.com/v" {
				t.Errorf("URL = %q", dlErr.URL)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	if err := validateURL("https://www.youtube.com/watch?v=abc"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validateURL("file:///etc/passwd"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
	if err := validateURL("https://"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL for empty host, got %v", err)
	}
}

func TestBuildDownloadArgs(t *testing.T) {
	args := buildDownloadArgs("/tmp/abc.%(ext)s", "", "https://youtu.be/abc")

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--no-playlist") {
		t.Error("expected --no-playlist in args")
	}
	if strings.Contains(joined, "--cookies") {
		t.Error("did not expect --cookies without a cookies file")
	}
	if args[len(args)-1] != "https://youtu.be/abc" {
		t.Errorf("URL must be the final argument, got %q", args[len(args)-1])
	}
}

func TestProbeOutput_ToMetadata(t *testing.T) {
	o := &probeOutput{
		ID:       "abc123def45",
		Title:    "Week 3: Dynamic Programming",
		Channel:  "CS Lectures",
		Duration: 245.5,
		Thumbnails: []thumb{
			{URL: "https://img.example.com/small.jpg", Width: 120},
			{URL: "https://img.example.com/large.jpg", Width: 1280},
		},
	}

	m := o.toMetadata()
	if m.Uploader != "CS Lectures" {
		t.Errorf("Uploader = %q, want channel fallback", m.Uploader)
	}
	if m.Thumbnail != "https://img.example.com/large.jpg" {
		t.Errorf("Thumbnail = %q, want last entry", m.Thumbnail)
	}
	if m.Duration != 245.5 {
		t.Errorf("Duration = %v", m.Duration)
	}
}
