package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTopic is returned when an on-demand topic normalizes to an
	// identifier already in the catalog. No generator call is made.
	ErrDuplicateTopic = errors.New("topic already in catalog")

	// ErrEmptyTopic is returned when a topic normalizes to nothing.
	ErrEmptyTopic = errors.New("topic is empty")

	// ErrStopped is returned when the loader worker is not running.
	ErrStopped = errors.New("catalog worker stopped")
)

// GenerationError reports a failed or invalid content generator call.
type GenerationError struct {
	Topic string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating course %q: %v", e.Topic, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// UserMessage is the message shown to the user for this failure.
func (e *GenerationError) UserMessage() string {
	return fmt.Sprintf("Failed to generate course content for %q. Please try again.", e.Topic)
}

// IsGenerationError reports whether err wraps a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// DuplicateNotice is the notice shown when a topic was already generated.
const DuplicateNotice = "Você já gerou um curso sobre este tópico!"
