package ai

import (
    "context"
    "errors"
    "fmt"
    "time"
)

// Request carries the document content an AI provider names a file from.
type Request struct {
    Text        string
    Model       string
    Timeout     time.Duration
    // Vision fields
    ImageBase64 string // Base64 encoded first-page image
    ImageMIME   string // Image MIME type (image/jpeg)
}

type Response struct {
    Filename  string
    TokensIn  int
    TokensOut int
}

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
    Name() string
    GenerateFilename(ctx context.Context, req Request) (Response, error)
}

var ErrRateLimited = errors.New("rate_limited")

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// HTTPError represents an HTTP status error from an AI provider.
type HTTPError struct {
    StatusCode int
    Body       string
    Provider   string
}

func (e *HTTPError) Error() string {
    return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

// ValidationError represents a malformed or unusable provider response.
type ValidationError struct {
    Message string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("validation error: %s", e.Message)
}

const systemPrompt = "You name document files. Given the text content of a document " +
    "(and optionally an image of its first page), reply with a single short descriptive " +
    "filename: lowercase words separated by underscores, no extension, no path, at most " +
    "ten words. Reply with the filename only."
