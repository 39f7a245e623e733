package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

// LifecycleCallbacks lets the host follow a run. All fields are optional.
type LifecycleCallbacks struct {
	OnProgress ports.UploadProgress
	OnUploaded func(documentID string)
	OnStage    func(domain.ProcessingStage)
}

// DocumentLifecycle chains upload, processing and analysis loading for the
// selected file and opens conversations scoped to the result.
type DocumentLifecycle struct {
	Uploader   *UploadCoordinator
	Processing *ProcessingTracker
	Loader     *AnalysisLoader

	queries      ports.QueryGateway
	conversation ConversationOptions
}

func NewDocumentLifecycle(
	uploader *UploadCoordinator,
	processing *ProcessingTracker,
	loader *AnalysisLoader,
	queries ports.QueryGateway,
	conversation ConversationOptions,
) *DocumentLifecycle {
	return &DocumentLifecycle{
		Uploader:     uploader,
		Processing:   processing,
		Loader:       loader,
		queries:      queries,
		conversation: conversation,
	}
}

// Run uploads the selected file, waits for processing to hand off and loads
// the live analysis for the new document.
func (l *DocumentLifecycle) Run(ctx context.Context, cb LifecycleCallbacks) (*domain.ResolvedAnalysis, error) {
	documentID, err := l.Uploader.Upload(ctx, cb.OnProgress)
	if err != nil {
		return nil, err
	}
	if cb.OnUploaded != nil {
		cb.OnUploaded(documentID)
	}

	run, err := l.Processing.Start(ctx, documentID, cb.OnStage)
	if err != nil {
		return nil, fmt.Errorf("start processing: %w", err)
	}
	if err := run.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for processing: %w", err)
	}

	return l.Loader.Resolve(ctx, documentID)
}

// Conversation opens a chat scoped to the resolved analysis, or a general
// chat when resolved is nil.
func (l *DocumentLifecycle) Conversation(resolved *domain.ResolvedAnalysis) *ConversationSession {
	documentID := ""
	if resolved != nil {
		documentID = resolved.Record.DocumentID
	}
	return NewConversationSession(documentID, l.queries, l.conversation)
}
