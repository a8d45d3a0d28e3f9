package ytdlp

import "errors"

var (
	// ErrURLNotSupported indicates the URL is not downloadable by yt-dlp
	ErrURLNotSupported = errors.New("url not supported")

	// ErrPlaylistNotSupported indicates the URL points at a playlist or channel
	ErrPlaylistNotSupported = errors.New("playlist urls are not supported")

	// ErrVideoUnavailable indicates the video is not available
	ErrVideoUnavailable = errors.New("video unavailable")

	// ErrVideoPrivate indicates the video is private
	ErrVideoPrivate = errors.New("video is private")

	// ErrSignInRequired indicates the source demands authentication (cookies)
	ErrSignInRequired = errors.New("sign-in required")

	// ErrNetworkError indicates a network-related error
	ErrNetworkError = errors.New("network error")

	// ErrYtdlpNotFound indicates yt-dlp is not installed
	ErrYtdlpNotFound = errors.New("yt-dlp not found in PATH")

	// ErrDownloadFailed indicates the download failed
	ErrDownloadFailed = errors.New("download failed")

	// ErrInvalidURL indicates the URL format is invalid
	ErrInvalidURL = errors.New("invalid url format")
)

// DownloadError wraps an error with additional context
type DownloadError struct {
	URL     string
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
