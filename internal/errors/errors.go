package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryClient   ErrorCategory = "client"
	CategoryServer   ErrorCategory = "server"
	CategoryExternal ErrorCategory = "external"
)

// Common error codes
const (
	// Client errors (4xx)
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInvalidURL            = "INVALID_URL"
	CodePlaylistNotSupported  = "PLAYLIST_NOT_SUPPORTED"
	CodeDurationExceeded      = "DURATION_EXCEEDED"
	CodeNotFound              = "NOT_FOUND"

	// Resource specific
	CodeJobNotFound         = "JOB_NOT_FOUND"
	CodeTranscriptNotFound  = "TRANSCRIPT_NOT_FOUND"
	CodeTranscriptNotReady  = "TRANSCRIPT_NOT_READY"
	CodeMediaNotFound       = "MEDIA_NOT_FOUND"

	// Server errors (5xx)
	CodeInternalError = "INTERNAL_ERROR"
	CodeStorageError  = "STORAGE_ERROR"

	// External service errors
	CodeDownloadError      = "DOWNLOAD_ERROR"
	CodeExtractionError    = "EXTRACTION_ERROR"
	CodeTranscriptionError = "TRANSCRIPTION_ERROR"
	CodeCompletionError    = "COMPLETION_ERROR"
	CodeExternalTimeout    = "EXTERNAL_TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"-"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause sets the underlying cause of the error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// New creates a new AppError
func New(code string, message string, category ErrorCategory, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Category:   category,
		HTTPStatus: httpStatus,
	}
}

// Client error constructors

func BadRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, CategoryClient, http.StatusBadRequest)
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message, CategoryClient, http.StatusBadRequest)
}

func InvalidURL(message string) *AppError {
	return New(CodeInvalidURL, message, CategoryClient, http.StatusBadRequest)
}

func PlaylistNotSupported() *AppError {
	return New(CodePlaylistNotSupported, "playlists and channels are not supported, submit a single video URL", CategoryClient, http.StatusBadRequest)
}

// DurationExceeded is distinguishable from generic failure so callers can
// present the specific limit to the user.
func DurationExceeded(limitSeconds, actualSeconds int) *AppError {
	return New(CodeDurationExceeded,
		fmt.Sprintf("only videos up to %d seconds can be processed", limitSeconds),
		CategoryClient, http.StatusBadRequest).
		WithDetails(map[string]any{
			"limit_seconds":    limitSeconds,
			"duration_seconds": actualSeconds,
		})
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), CategoryClient, http.StatusNotFound)
}

func JobNotFound() *AppError {
	return New(CodeJobNotFound, "job not found", CategoryClient, http.StatusNotFound)
}

func TranscriptNotFound() *AppError {
	return New(CodeTranscriptNotFound, "transcript not found", CategoryClient, http.StatusNotFound)
}

func TranscriptNotReady() *AppError {
	return New(CodeTranscriptNotReady, "transcript is not ready yet", CategoryClient, http.StatusConflict)
}

func MediaNotFound() *AppError {
	return New(CodeMediaNotFound, "media not found", CategoryClient, http.StatusNotFound)
}

// Server error constructors

func InternalError(message string) *AppError {
	return New(CodeInternalError, message, CategoryServer, http.StatusInternalServerError)
}

func StorageError(message string) *AppError {
	return New(CodeStorageError, message, CategoryServer, http.StatusInternalServerError)
}

// External service error constructors

func DownloadError(message string) *AppError {
	return New(CodeDownloadError, message, CategoryExternal, http.StatusBadGateway)
}

func ExtractionError(message string) *AppError {
	return New(CodeExtractionError, message, CategoryExternal, http.StatusBadGateway)
}

func TranscriptionError(message string) *AppError {
	return New(CodeTranscriptionError, message, CategoryExternal, http.StatusBadGateway)
}

func CompletionError(message string) *AppError {
	return New(CodeCompletionError, message, CategoryExternal, http.StatusBadGateway)
}

func ExternalTimeout(service string) *AppError {
	return New(CodeExternalTimeout, fmt.Sprintf("%s request timed out", service), CategoryExternal, http.StatusGatewayTimeout)
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, requestID string, err error) {
	var appErr *AppError

	switch e := err.(type) {
	case *AppError:
		appErr = e
	default:
		// Wrap unknown errors as internal errors
		appErr = InternalError("an unexpected error occurred").WithCause(err)
	}

	resp := ErrorResponse{
		Error: ErrorBody{
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
			Details:   appErr.Details,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes a JSON response with the request ID header
func WriteJSON(w http.ResponseWriter, requestID string, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	// Input-validation errors are never retried
	if appErr.Category == CategoryClient {
		return false
	}

	// External service errors are typically transient
	if appErr.Category == CategoryExternal {
		return true
	}

	return appErr.Code != CodeStorageError
}

// IsClientError returns true if the error is a client error
func IsClientError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryClient
}

// IsExternalError returns true if the error is an external service error
func IsExternalError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Category == CategoryExternal
}

// Code extracts the machine-readable code from an error, or
// CodeInternalError for unclassified errors.
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternalError
}
