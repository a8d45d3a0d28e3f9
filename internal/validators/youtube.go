package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// YouTubeValidator validates YouTube URLs
type YouTubeValidator struct {
	// videoIDPattern matches YouTube video IDs (11 characters, alphanumeric with - and _)
	videoIDPattern *regexp.Regexp
}

// NewYouTubeValidator creates a new YouTube URL validator
func NewYouTubeValidator() *YouTubeValidator {
	return &YouTubeValidator{
		videoIDPattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`),
	}
}

// SourceType returns the source type for this validator
func (v *YouTubeValidator) SourceType() SourceType {
	return SourceYouTube
}

// CanHandle returns true if the URL appears to be a YouTube URL
func (v *YouTubeValidator) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}

	host := normalizeYouTubeHost(parsed.Host)
	return host == "youtube.com" || host == "youtu.be"
}

// Validate validates a YouTube URL and extracts the video ID.
// Playlist, channel and user URLs are rejected: a transcription job is
// always a single video.
func (v *YouTubeValidator) Validate(rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceYouTube,
			URL:        rawURL,
			Error:      "invalid URL format",
			ErrorCode:  "INVALID_URL",
		}
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
		rawURL = parsed.String()
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceYouTube,
			URL:        rawURL,
			Error:      "invalid URL scheme",
			ErrorCode:  "INVALID_URL",
		}
	}

	host := normalizeYouTubeHost(parsed.Host)
	path := parsed.Path
	query := parsed.Query()

	// Collection URLs cannot be turned into a single job.
	if host == "youtube.com" {
		switch {
		case strings.HasPrefix(path, "/playlist"):
			return v.rejectCollection(rawURL, "playlist")
		case strings.HasPrefix(path, "/channel/"),
			strings.HasPrefix(path, "/user/"),
			strings.HasPrefix(path, "/c/"),
			strings.HasPrefix(path, "/@"):
			return v.rejectCollection(rawURL, "channel")
		}
	}
	if query.Get("list") != "" && query.Get("v") == "" {
		return v.rejectCollection(rawURL, "playlist")
	}

	var videoID string
	var mediaType string

	switch host {
	case "youtu.be":
		// Short URL format: youtu.be/VIDEO_ID
		videoID = strings.TrimPrefix(path, "/")
		mediaType = "video"

	case "youtube.com":
		videoID, mediaType = v.extractFromYouTubeCom(parsed)

	default:
		return ValidationResult{
			Valid:      false,
			SourceType: SourceYouTube,
			URL:        rawURL,
			Error:      "not a YouTube URL",
			ErrorCode:  "INVALID_URL",
		}
	}

	if videoID == "" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceYouTube,
			URL:        rawURL,
			Error:      "could not extract video ID from URL",
			ErrorCode:  "INVALID_URL",
		}
	}

	if !v.videoIDPattern.MatchString(videoID) {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceYouTube,
			URL:        rawURL,
			VideoID:    videoID,
			Error:      "invalid video ID format",
			ErrorCode:  "INVALID_URL",
		}
	}

	return ValidationResult{
		Valid:      true,
		SourceType: SourceYouTube,
		VideoID:    videoID,
		MediaType:  mediaType,
		URL:        rawURL,
		Canonical:  fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
	}
}

func (v *YouTubeValidator) rejectCollection(rawURL, kind string) ValidationResult {
	return ValidationResult{
		Valid:      false,
		SourceType: SourceYouTube,
		MediaType:  kind,
		URL:        rawURL,
		Error:      fmt.Sprintf("%s URLs are not supported, submit a single video", kind),
		ErrorCode:  "PLAYLIST_NOT_SUPPORTED",
	}
}

// extractFromYouTubeCom extracts video ID from youtube.com URLs
func (v *YouTubeValidator) extractFromYouTubeCom(parsed *url.URL) (videoID, mediaType string) {
	path := parsed.Path
	query := parsed.Query()

	switch {
	case strings.HasPrefix(path, "/watch"):
		// Standard watch URL: /watch?v=VIDEO_ID
		videoID = query.Get("v")
		mediaType = "video"

	case strings.HasPrefix(path, "/shorts/"):
		videoID = strings.TrimPrefix(path, "/shorts/")
		mediaType = "video"

	case strings.HasPrefix(path, "/embed/"):
		videoID = strings.TrimPrefix(path, "/embed/")
		mediaType = "video"

	case strings.HasPrefix(path, "/v/"):
		// Old embed format: /v/VIDEO_ID
		videoID = strings.TrimPrefix(path, "/v/")
		mediaType = "video"

	case strings.HasPrefix(path, "/live/"):
		videoID = strings.TrimPrefix(path, "/live/")
		mediaType = "live"
	}

	// Clean up video ID (remove any trailing path segments or query params)
	if idx := strings.Index(videoID, "/"); idx != -1 {
		videoID = videoID[:idx]
	}
	if idx := strings.Index(videoID, "?"); idx != -1 {
		videoID = videoID[:idx]
	}

	return videoID, mediaType
}

func normalizeYouTubeHost(host string) string {
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	return host
}
