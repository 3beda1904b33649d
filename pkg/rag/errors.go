// Package rag holds the error taxonomy shared by the conversational engine.
package rag

import "errors"

var (
	// Indexing faults. Recovered locally: the offending document is marked error.
	ErrExtractionFailed = errors.New("extraction failed")
	ErrEmbeddingFailed  = errors.New("embedding failed")

	// Assistant misconfiguration. Fatal, surfaced to operators, never patched per turn.
	ErrInvalidWorkflow   = errors.New("invalid workflow")
	ErrMissingDependency = errors.New("missing dependency")

	// Recovered via the keyword fallback; never reaches the caller.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// Not a failure: every threshold of the ladder came back empty.
	ErrRetrievalEmpty = errors.New("retrieval empty")

	// Surfaced to the end user as an error frame. The step stays retryable.
	ErrGenerationTimeout = errors.New("generation timeout")
	ErrGenerationFailed  = errors.New("generation failed")
)

// IsFatal reports whether err points at a misconfigured assistant.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidWorkflow) || errors.Is(err, ErrMissingDependency)
}

// IsRetryable reports whether the same input may succeed on the next turn.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationTimeout) || errors.Is(err, ErrGenerationFailed)
}
