package validators

import (
	"net/url"
	"strings"
)

// DirectValidator accepts any http(s) URL that is not claimed by a more
// specific validator. The downloader decides whether yt-dlp can actually
// fetch it; validation here only rules out obviously malformed input.
type DirectValidator struct{}

// NewDirectValidator creates a validator for direct media URLs
func NewDirectValidator() *DirectValidator {
	return &DirectValidator{}
}

// SourceType returns the source type for this validator
func (v *DirectValidator) SourceType() SourceType {
	return SourceDirect
}

// CanHandle returns true for any parseable http(s) URL with a host
func (v *DirectValidator) CanHandle(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// Validate normalizes the URL into a canonical form used for job identity:
// lowercase host, fragment stripped, query preserved.
func (v *DirectValidator) Validate(rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceDirect,
			URL:        rawURL,
			Error:      "invalid URL format",
			ErrorCode:  "INVALID_URL",
		}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationResult{
			Valid:      false,
			SourceType: SourceDirect,
			URL:        rawURL,
			Error:      "invalid URL scheme",
			ErrorCode:  "INVALID_URL",
		}
	}

	canonical := *parsed
	canonical.Host = strings.ToLower(parsed.Host)
	canonical.Fragment = ""

	return ValidationResult{
		Valid:      true,
		SourceType: SourceDirect,
		MediaType:  "video",
		URL:        rawURL,
		Canonical:  canonical.String(),
	}
}
