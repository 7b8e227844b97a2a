package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"salesassistant/models"
)

type SessionID string

type State int

const (
	StateCreated State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Session owns one transcript, one insight collection and the active model.
// Chat and insight submissions are serialized: at most one completion call
// is in flight per session.
type Session struct {
	id        SessionID
	createdAt time.Time

	client   CompletionClient
	archiver Archiver
	logger   *zap.Logger
	now      func() time.Time

	// held for the whole of a submission
	inflight *semaphore.Weighted

	mu          sync.RWMutex
	state       State
	activeModel string

	conversation *ConversationStore
	insights     *InsightStore
}

type SessionOption func(*Session)

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

func WithArchiver(a Archiver) SessionOption {
	return func(s *Session) { s.archiver = a }
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func NewSession(id SessionID, defaultModel string, client CompletionClient, opts ...SessionOption) *Session {
	s := &Session{
		id:           id,
		client:       client,
		archiver:     NopArchiver{},
		logger:       zap.NewNop(),
		now:          time.Now,
		inflight:     semaphore.NewWeighted(1),
		state:        StateCreated,
		activeModel:  defaultModel,
		conversation: NewConversationStore(),
		insights:     NewInsightStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	s.logger = s.logger.With(zap.String("session_id", string(id)))
	return s
}

func (s *Session) ID() SessionID        { return s.id }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeModel
}

func (s *Session) SetModel(model string) error {
	const op = "set model"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return &PreconditionError{Op: op, Err: ErrSessionEnded}
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return &PreconditionError{Op: op, Err: ErrModelNotSet}
	}
	s.activeModel = model
	s.logger.Info("active model changed", zap.String("model", model))
	return nil
}

// SubmitUserMessage runs one chat turn. The full transcript plus the new
// user message is sent to the provider; onProgress receives the cumulative
// reply text as it streams in.
//
// The user and assistant messages are committed together once the stream
// completes. A provider fault returns a *CompletionError and leaves the
// transcript untouched.
func (s *Session) SubmitUserMessage(ctx context.Context, text string, onProgress func(partial string)) (models.Message, error) {
	const op = "submit user message"

	if err := s.acquire(ctx, op); err != nil {
		return models.Message{}, err
	}
	defer s.inflight.Release(1)

	model, err := s.begin(op)
	if err != nil {
		return models.Message{}, err
	}

	user := models.NewMessage(models.RoleUser, text, s.now())
	history := append(s.conversation.Snapshot(), user)

	stream, err := s.client.CompleteStreaming(ctx, model, history)
	if err != nil {
		s.logger.Error("completion stream failed to open", zap.String("model", model), zap.Error(err))
		return models.Message{}, newCompletionError(op, err)
	}

	final, err := Assemble(stream, onProgress)
	if err != nil {
		s.logger.Error("completion stream faulted",
			zap.String("model", model),
			zap.Int("partial_len", len(final)),
			zap.Error(err),
		)
		return models.Message{}, err
	}

	assistant := models.NewMessage(models.RoleAssistant, final, s.now())

	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return models.Message{}, &PreconditionError{Op: op, Err: ErrSessionEnded}
	}
	s.conversation.Append(user, assistant)
	s.mu.Unlock()

	s.logger.Info("chat turn committed",
		zap.String("model", model),
		zap.Int("transcript_len", s.conversation.Len()),
		zap.Int("reply_len", len(final)),
	)

	if err := s.archiver.ArchiveTurn(ctx, s.id, user, assistant); err != nil {
		s.logger.Warn("archive turn failed", zap.Error(err))
	}

	return assistant, nil
}

// SubmitSalesInput formats the form into a prompt, asks the provider for a
// single-shot answer and records it as an insight. On failure nothing is
// recorded.
func (s *Session) SubmitSalesInput(ctx context.Context, in models.SalesInput) (models.IndexedInsight, error) {
	const op = "submit sales input"

	if err := s.acquire(ctx, op); err != nil {
		return models.IndexedInsight{}, err
	}
	defer s.inflight.Release(1)

	model, err := s.begin(op)
	if err != nil {
		return models.IndexedInsight{}, err
	}

	prompt := FormatInsightPrompt(in)
	if in.UploadedFileName != "" {
		s.logger.Info("product overview attached", zap.String("file", in.UploadedFileName))
	}

	text, err := s.client.CompleteOnce(ctx, model, []models.Message{
		models.NewMessage(models.RoleUser, prompt, s.now()),
	})
	if err != nil {
		s.logger.Error("insight generation failed", zap.String("model", model), zap.Error(err))
		return models.IndexedInsight{}, newCompletionError(op, err)
	}

	insight := models.Insight{
		ProductName:      in.ProductName,
		CompanyURL:       in.CompanyURL,
		Category:         in.ProductCategory,
		ValueProposition: in.ValueProposition,
		Text:             text,
		CreatedAt:        s.now(),
	}

	s.mu.Lock()
	if s.state == StateEnded {
		s.mu.Unlock()
		return models.IndexedInsight{}, &PreconditionError{Op: op, Err: ErrSessionEnded}
	}
	indexed := models.IndexedInsight{Index: s.insights.Append(insight), Insight: insight}
	s.mu.Unlock()

	s.logger.Info("insight recorded", zap.Int("index", indexed.Index), zap.String("product", in.ProductName))

	if err := s.archiver.ArchiveInsight(ctx, s.id, indexed); err != nil {
		s.logger.Warn("archive insight failed", zap.Error(err))
	}

	return indexed, nil
}

func (s *Session) Transcript() ([]models.Message, error) {
	if err := s.checkLive("transcript"); err != nil {
		return nil, err
	}
	return s.conversation.Snapshot(), nil
}

func (s *Session) Insights() ([]models.IndexedInsight, error) {
	if err := s.checkLive("insights"); err != nil {
		return nil, err
	}
	return s.insights.List(), nil
}

// Insight looks up one insight by its 1-based index.
func (s *Session) Insight(index int) (models.IndexedInsight, bool, error) {
	if err := s.checkLive("insight"); err != nil {
		return models.IndexedInsight{}, false, err
	}
	in, ok := s.insights.Get(index)
	return in, ok, nil
}

// Counts returns the transcript and insight sizes.
func (s *Session) Counts() (messages, insights int) {
	return s.conversation.Len(), s.insights.Len()
}

// End is terminal. A submission already in flight finishes its provider call
// but commits nothing.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return &PreconditionError{Op: "end", Err: ErrSessionEnded}
	}
	s.state = StateEnded
	s.logger.Info("session ended")
	return nil
}

func (s *Session) acquire(ctx context.Context, op string) error {
	if err := s.checkLive(op); err != nil {
		return err
	}
	if err := s.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%s: waiting for in-flight request: %w", op, err)
	}
	return nil
}

// begin validates the session for a submission and moves it out of Created.
func (s *Session) begin(op string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return "", &PreconditionError{Op: op, Err: ErrSessionEnded}
	}
	if s.activeModel == "" {
		return "", &PreconditionError{Op: op, Err: ErrModelNotSet}
	}
	if s.state == StateCreated {
		s.state = StateActive
		s.logger.Debug("session active")
	}
	return s.activeModel, nil
}

func (s *Session) checkLive(op string) error {
	if s.State() == StateEnded {
		return &PreconditionError{Op: op, Err: ErrSessionEnded}
	}
	return nil
}
