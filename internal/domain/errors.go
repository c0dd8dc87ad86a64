package domain

import "errors"

var (
	// ErrNotFound indicates a missing document, quiz or session
	ErrNotFound = errors.New("resource not found")
	// ErrBadInput indicates an invalid or missing request field
	ErrBadInput = errors.New("invalid request")
	// ErrExtractionFailed indicates the file could not be parsed into pages
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmbeddingUnavailable indicates no embedding backend could serve the request
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrGenerationFailed indicates the LLM call failed
	ErrGenerationFailed = errors.New("generation failed")
	// ErrParseFailed indicates the LLM returned unparsable JSON
	ErrParseFailed = errors.New("failed to parse model output")
	// ErrPersistenceFailed indicates a catalog write failed and was rolled back
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrTransient indicates a retryable condition (rate limit, overload, network)
	ErrTransient = errors.New("transient error")
)
