package ports

import (
	"context"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// DocumentUploader is the inbound contract for file selection and transfer.
type DocumentUploader interface {
	SelectFile(file domain.FileRef) error
	Upload(ctx context.Context, progress UploadProgress) (string, error)
	Remove()
	State() domain.UploadState
}

// AnalysisResolver decides which analysis should be displayed.
type AnalysisResolver interface {
	Resolve(ctx context.Context, documentID string) (*domain.ResolvedAnalysis, error)
}

// ConversationService is the inbound contract for one chat session.
type ConversationService interface {
	Send(ctx context.Context, text string) error
	Messages() []domain.Message
}
