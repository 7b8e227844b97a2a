package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"salesassistant/models"
)

// MockCall records one request seen by MockCompletionClient.
type MockCall struct {
	Streaming bool
	Model     string
	Messages  []models.Message
}

// MockCompletionClient answers without a provider. It backs local mode and
// tests. The zero value echoes the last user message word by word.
type MockCompletionClient struct {
	// Fragments replaces the echo for streaming calls when non-nil.
	Fragments []string
	// Reply replaces the generated single-shot answer when non-empty.
	Reply string
	// Err fails both modes before any output.
	Err error
	// StreamErr faults the stream after StreamErrAfter fragments.
	StreamErr      error
	StreamErrAfter int

	mu    sync.Mutex
	calls []MockCall
}

func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{}
}

func (m *MockCompletionClient) CompleteStreaming(ctx context.Context, model string, messages []models.Message) (FragmentStream, error) {
	m.record(true, model, messages)
	if m.Err != nil {
		return nil, newCompletionError("complete streaming", m.Err)
	}

	frags := m.Fragments
	if frags == nil {
		frags = splitKeepSpaces(fmt.Sprintf("You said: %s", lastUserContent(messages)))
	}
	return &sliceStream{frags: frags, failAfter: m.StreamErrAfter, failErr: m.StreamErr}, nil
}

func (m *MockCompletionClient) CompleteOnce(ctx context.Context, model string, messages []models.Message) (string, error) {
	m.record(false, model, messages)
	if m.Err != nil {
		return "", newCompletionError("complete once", m.Err)
	}
	if m.Reply != "" {
		return m.Reply, nil
	}

	first, _, _ := strings.Cut(lastUserContent(messages), "\n")
	return fmt.Sprintf("[%s] canned insight for request %q", model, first), nil
}

// Calls returns a copy of the recorded requests.
func (m *MockCompletionClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockCompletionClient) record(streaming bool, model string, messages []models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Streaming: streaming, Model: model, Messages: messages})
}

type sliceStream struct {
	frags     []string
	pos       int
	failAfter int
	failErr   error
	closed    bool
}

func (s *sliceStream) Next() (Fragment, error) {
	if s.closed {
		return Fragment{}, io.ErrClosedPipe
	}
	if s.failErr != nil && s.pos >= s.failAfter {
		return Fragment{}, s.failErr
	}
	if s.pos >= len(s.frags) {
		return Fragment{}, io.EOF
	}
	f := Fragment{Delta: s.frags[s.pos]}
	s.pos++
	return f, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func lastUserContent(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// splitKeepSpaces breaks s into word-sized chunks that still concatenate
// back to s.
func splitKeepSpaces(s string) []string {
	var out []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i] == ' ' {
			out = append(out, s[start:i])
			start = i
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
