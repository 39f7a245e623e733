package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

func newTestSession(documentID string, gateway *queryGatewayFake) *ConversationSession {
	n := 0
	return NewConversationSession(documentID, gateway, ConversationOptions{
		Clock: newSchedulerFake(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)),
		NewID: func() string {
			n++
			return fmt.Sprintf("m-%d", n)
		},
		Logger: quietLogger(),
	})
}

func TestConversationStartsWithGreeting(t *testing.T) {
	scoped := newTestSession("doc-7", &queryGatewayFake{})
	msgs := scoped.Messages()
	if len(msgs) != 1 || msgs[0].Role != domain.RoleAssistant {
		t.Fatalf("expected a single assistant greeting, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, `"doc-7"`) {
		t.Fatalf("greeting should name the document, got %q", msgs[0].Content)
	}
	if got := scoped.SuggestedQuestions(); len(got) != len(documentQuestions) {
		t.Fatalf("expected document questions, got %v", got)
	}

	general := newTestSession("", &queryGatewayFake{})
	if strings.Contains(general.Messages()[0].Content, "uploaded document") {
		t.Fatalf("general greeting must not reference a document")
	}
	if got := general.SuggestedQuestions(); len(got) != len(generalQuestions) {
		t.Fatalf("expected general questions, got %v", got)
	}
}

func TestSendRejectsBlankText(t *testing.T) {
	gateway := &queryGatewayFake{answer: &domain.QueryAnswer{Answer: "x"}}
	session := newTestSession("doc-1", gateway)

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := session.Send(context.Background(), text); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Send(%q) expected ErrInvalidInput, got %v", text, err)
		}
	}
	if n := len(session.Messages()); n != 1 {
		t.Fatalf("blank sends must not add messages, got %d", n)
	}
	if len(gateway.requests) != 0 {
		t.Fatalf("blank sends must not reach the backend")
	}
}

func TestSendAppendsQuestionThenAnswer(t *testing.T) {
	gateway := &queryGatewayFake{answer: &domain.QueryAnswer{
		Answer:  "It describes a robotic workflow engine.",
		Sources: []string{"page 2", "claim 1"},
	}}
	session := newTestSession("doc-1", gateway)

	if err := session.Send(context.Background(), "  What is it about? "); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	msgs := session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected greeting, question and answer, got %d", len(msgs))
	}
	if msgs[1].Role != domain.RoleUser || msgs[1].Content != "  What is it about? " {
		t.Fatalf("user message must be stored verbatim, got %+v", msgs[1])
	}
	if msgs[2].Role != domain.RoleAssistant || msgs[2].Content != "It describes a robotic workflow engine." {
		t.Fatalf("unexpected reply %+v", msgs[2])
	}
	if len(msgs[2].Sources) != 2 || msgs[2].Sources[0] != "page 2" {
		t.Fatalf("expected sources on the reply, got %v", msgs[2].Sources)
	}
	if msgs[0].ID == msgs[1].ID || msgs[1].ID == msgs[2].ID {
		t.Fatalf("message ids must be unique")
	}
	if gateway.requests[0].DocumentID != "doc-1" {
		t.Fatalf("query must be scoped to the document, got %+v", gateway.requests[0])
	}
	if session.SuggestedQuestions() != nil {
		t.Fatalf("suggestions should disappear after the first message")
	}
}

func TestSendRejectsWhileQueryInFlight(t *testing.T) {
	gateway := &queryGatewayFake{
		answer:  &domain.QueryAnswer{Answer: "first"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	session := newTestSession("doc-1", gateway)

	errCh := make(chan error, 1)
	go func() { errCh <- session.Send(context.Background(), "first question") }()
	<-gateway.started

	if !session.Pending() {
		t.Fatalf("expected session to be pending")
	}
	if err := session.Send(context.Background(), "second question"); !domain.IsKind(err, domain.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	close(gateway.block)
	if err := <-errCh; err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	msgs := session.Messages()
	if len(msgs) != 3 {
		t.Fatalf("rejected send must not add messages, got %d", len(msgs))
	}
	if session.Pending() {
		t.Fatalf("session should be idle after the reply")
	}
}

func TestSendDropsReplyAfterCancellation(t *testing.T) {
	gateway := &queryGatewayFake{
		answer:  &domain.QueryAnswer{Answer: "late"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	session := newTestSession("doc-1", gateway)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- session.Send(ctx, "question") }()
	<-gateway.started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected greeting and question only, got %d messages", len(msgs))
	}
	if msgs[1].Role != domain.RoleUser || msgs[1].Content != "question" {
		t.Fatalf("unexpected last message %+v", msgs[1])
	}
	if session.Pending() {
		t.Fatalf("session should accept new messages after cancellation")
	}

	close(gateway.block)
	if err := session.Send(context.Background(), "again"); err != nil {
		t.Fatalf("Send() after cancellation error = %v", err)
	}
	if got := session.Messages(); len(got) != 4 || got[3].Content != "late" {
		t.Fatalf("expected reply to the new question, got %+v", got)
	}
}

func TestSendMapsFailuresToReplies(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		answer *domain.QueryAnswer
		want   string
	}{
		{
			name: "not found",
			err:  &domain.TransportError{Operation: "query", StatusCode: http.StatusNotFound},
			want: replyNotFound,
		},
		{
			name: "server error",
			err:  &domain.TransportError{Operation: "query", StatusCode: http.StatusInternalServerError, Message: "boom"},
			want: replyServerError,
		},
		{
			name: "other status with message",
			err:  &domain.TransportError{Operation: "query", StatusCode: http.StatusBadGateway, Message: "upstream down"},
			want: "Error: upstream down",
		},
		{
			name: "network failure",
			err:  &domain.TransportError{Operation: "query", Err: errors.New("connection refused")},
			want: "Error: connection refused",
		},
		{
			name: "plain error",
			err:  errors.New("context deadline exceeded"),
			want: "Error: context deadline exceeded",
		},
		{
			name:   "empty answer",
			answer: &domain.QueryAnswer{},
			want:   replyNoAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newTestSession("doc-1", &queryGatewayFake{answer: tt.answer, err: tt.err})
			if err := session.Send(context.Background(), "question"); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			msgs := session.Messages()
			last := msgs[len(msgs)-1]
			if last.Role != domain.RoleAssistant || last.Content != tt.want {
				t.Fatalf("reply = %q, want %q", last.Content, tt.want)
			}
			if last.Sources != nil {
				t.Fatalf("failure replies carry no sources")
			}
		})
	}
}

func TestGeneralConversationSendsNoDocumentID(t *testing.T) {
	gateway := &queryGatewayFake{answer: &domain.QueryAnswer{Answer: "RPA automates tasks."}}
	session := newTestSession("", gateway)

	if err := session.Send(context.Background(), "What is RPA technology?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if gateway.requests[0].DocumentID != "" {
		t.Fatalf("general chat must not send a document id")
	}
}
