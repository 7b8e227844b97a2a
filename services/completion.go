package services

import (
	"context"
	"errors"
	"fmt"

	"salesassistant/models"
)

// Fragment is one streamed chunk. A chunk without a text delta carries the
// empty string.
type Fragment struct {
	Delta string
}

// FragmentStream is a finite, ordered sequence of fragments. Next returns
// io.EOF once the provider signals completion.
type FragmentStream interface {
	Next() (Fragment, error)
	Close() error
}

// CompletionClient is the boundary to the hosted completion provider.
type CompletionClient interface {
	CompleteStreaming(ctx context.Context, model string, messages []models.Message) (FragmentStream, error)
	CompleteOnce(ctx context.Context, model string, messages []models.Message) (string, error)
}

// CompletionError is any provider-side fault: transport, auth, quota or a
// malformed response.
type CompletionError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func newCompletionError(op string, err error) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	return &CompletionError{Op: op, Message: err.Error(), Err: err}
}

var (
	ErrSessionEnded    = errors.New("session has ended")
	ErrModelNotSet     = errors.New("no active model set")
	ErrSessionNotFound = errors.New("session not found")
)

// PreconditionError reports a call the session cannot accept in its current
// state. It is fatal to the call, not to the session.
type PreconditionError struct {
	Op  string
	Err error
}

func (e *PreconditionError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *PreconditionError) Unwrap() error { return e.Err }
