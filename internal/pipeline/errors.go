package pipeline

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput marks malformed request input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrContentFormat marks content the normalizer could not turn into text.
	ErrContentFormat = errors.New("invalid content format")
	// ErrEmptyContent marks documents that produce no chunks.
	ErrEmptyContent = errors.New("empty content after processing")
)

// DefaultRateLimitMarker is the provider error code that signals throttling.
const DefaultRateLimitMarker = "rate_limit_exceeded"

// IsRateLimited reports whether err's text contains marker.
func IsRateLimited(err error, marker string) bool {
	if err == nil {
		return false
	}
	if marker == "" {
		marker = DefaultRateLimitMarker
	}
	return strings.Contains(err.Error(), marker)
}

// IsSkippable reports whether err means the document has nothing to extract.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrContentFormat) || errors.Is(err, ErrEmptyContent)
}
