package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

const (
	replyNoAnswer    = "No answer received."
	replyNotFound    = "No relevant information found. Please try a different question."
	replyServerError = "Server error. Please try again later."
	replyGeneric     = "Something went wrong. Please try again later."
)

var (
	documentQuestions = []string{
		"What is this document about?",
		"What are the main claims in this document?",
		"What technologies are mentioned?",
		"What are the key innovations described?",
		"Summarize the technical approach",
	}
	generalQuestions = []string{
		"What is RPA technology?",
		"How does machine learning improve patent analysis?",
		"What are the key components of a patent?",
		"Explain the patent filing process",
	}
)

type ConversationOptions struct {
	Clock    ports.Clock
	NewID    func() string
	Recorder ports.LifecycleRecorder
	Logger   *slog.Logger
}

// ConversationSession is the message log for one document, or a general chat
// when documentID is empty. Only one query may be in flight at a time.
type ConversationSession struct {
	documentID string
	gateway    ports.QueryGateway
	clock      ports.Clock
	newID      func() string
	recorder   ports.LifecycleRecorder
	logger     *slog.Logger

	mu       sync.Mutex
	messages []domain.Message
	inFlight bool
}

func NewConversationSession(documentID string, gateway ports.QueryGateway, opts ConversationOptions) *ConversationSession {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &ConversationSession{
		documentID: strings.TrimSpace(documentID),
		gateway:    gateway,
		clock:      opts.Clock,
		newID:      opts.NewID,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
	}
	s.messages = []domain.Message{s.newMessage(domain.RoleAssistant, s.greeting(), nil)}
	return s
}

func (s *ConversationSession) DocumentID() string {
	return s.documentID
}

func (s *ConversationSession) greeting() string {
	if s.documentID != "" {
		return fmt.Sprintf(
			"Hello! I'm your patent assistant. I'm here to answer questions about your uploaded document: %q. What would you like to know about it?",
			s.documentID,
		)
	}
	return "Hello! I'm your patent assistant. Please upload a patent document first, or ask me general questions about patents and intellectual property."
}

// Send appends the user message right away and the assistant reply once the
// query returns. Query failures become assistant messages, not errors. If ctx
// ends first no reply is appended and the context error is returned.
func (s *ConversationSession) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "send message", errors.New("message is empty"))
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrInFlight, "send message", errors.New("previous message is still pending"))
	}
	s.inFlight = true
	s.messages = append(s.messages, s.newMessage(domain.RoleUser, text, nil))
	s.mu.Unlock()

	reply := s.ask(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err := ctx.Err(); err != nil {
		s.logger.Info("conversation_reply_dropped", "document_id", s.documentID, "reason", err)
		return fmt.Errorf("send message: %w", err)
	}
	s.messages = append(s.messages, reply)
	return nil
}

func (s *ConversationSession) ask(ctx context.Context, text string) domain.Message {
	answer, err := s.gateway.Query(ctx, domain.QueryRequest{
		Question:   text,
		DocumentID: s.documentID,
	})
	if err != nil {
		s.recorder.ObserveQuery("error")
		s.logger.Warn("conversation_query_failed",
			"document_id", s.documentID,
			"status", domain.StatusCodeOf(err),
			"error", err,
		)
		return s.newMessage(domain.RoleAssistant, queryFailureReply(err), nil)
	}
	if answer == nil || answer.Answer == "" {
		s.recorder.ObserveQuery("no_answer")
		return s.newMessage(domain.RoleAssistant, replyNoAnswer, nil)
	}

	s.recorder.ObserveQuery("answered")
	var sources []string
	if len(answer.Sources) > 0 {
		sources = append([]string(nil), answer.Sources...)
	}
	return s.newMessage(domain.RoleAssistant, answer.Answer, sources)
}

func queryFailureReply(err error) string {
	switch domain.StatusCodeOf(err) {
	case http.StatusNotFound:
		return replyNotFound
	case http.StatusInternalServerError:
		return replyServerError
	}

	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		switch {
		case transportErr.Message != "":
			return "Error: " + transportErr.Message
		case transportErr.Err != nil:
			return "Error: " + transportErr.Err.Error()
		}
		return replyGeneric
	}
	if err != nil && err.Error() != "" {
		return "Error: " + err.Error()
	}
	return replyGeneric
}

// Messages returns a copy of the log in append order.
func (s *ConversationSession) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationSession) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// SuggestedQuestions offers starter questions until the first message is sent.
func (s *ConversationSession) SuggestedQuestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 1 {
		return nil
	}
	if s.documentID != "" {
		return append([]string(nil), documentQuestions...)
	}
	return append([]string(nil), generalQuestions...)
}

func (s *ConversationSession) newMessage(role domain.Role, content string, sources []string) domain.Message {
	return domain.Message{
		ID:        s.newID(),
		Content:   content,
		Role:      role,
		Timestamp: s.clock.Now().UTC(),
		Sources:   sources,
	}
}
