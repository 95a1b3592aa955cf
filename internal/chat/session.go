package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/Neruzzz/toolchat/internal/chat/model"
	"github.com/Neruzzz/toolchat/internal/tools"
)

var ErrSessionClosed = errors.New("session is closed")

// Session owns one conversation and the tools it may call. It is created
// when a dialogue starts and torn down with Close when it ends.
type Session struct {
	ID           string
	Conversation *model.Conversation
	Registry     *tools.Registry

	mu      sync.Mutex
	closers []func() error
	closed  bool
}

// NewSession starts a session over reg. closers run on Close in reverse
// order.
func NewSession(reg *tools.Registry, closers ...func() error) *Session {
	conv := model.NewConversation()
	return &Session{
		ID:           conv.ID.String(),
		Conversation: conv,
		Registry:     reg,
		closers:      closers,
	}
}

// OnClose registers fn to run when the session ends.
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Context returns ctx tagged with the session id.
func (s *Session) Context(ctx context.Context) context.Context {
	return tools.WithSession(ctx, s.ID)
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset starts a fresh conversation under a new id, keeping the registry.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conversation = model.NewConversation()
	s.ID = s.Conversation.ID.String()
}

// Close discards the conversation and releases session resources. It is
// safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.Conversation.Reset()
	s.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		slog.Warn("Session closed with errors", "session_id", s.ID, "count", len(errs))
	}
	return errors.Join(errs...)
}
