package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

type AnalysisLoaderOptions struct {
	Events   ports.LifecycleEvents
	Recorder ports.LifecycleRecorder
	Logger   *slog.Logger
}

// AnalysisLoader picks between a live fetch and the cached analysis. Live
// data always supersedes the cache and the two are never merged.
type AnalysisLoader struct {
	cache    *AnalysisCache
	gateway  ports.AnalysisGateway
	clock    ports.Clock
	events   ports.LifecycleEvents
	recorder ports.LifecycleRecorder
	logger   *slog.Logger
}

func NewAnalysisLoader(
	cache *AnalysisCache,
	gateway ports.AnalysisGateway,
	clock ports.Clock,
	opts AnalysisLoaderOptions,
) *AnalysisLoader {
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &AnalysisLoader{
		cache:    cache,
		gateway:  gateway,
		clock:    clock,
		events:   opts.Events,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Resolve returns the analysis to display. An empty documentID falls back to
// the cached record.
func (l *AnalysisLoader) Resolve(ctx context.Context, documentID string) (*domain.ResolvedAnalysis, error) {
	documentID = strings.TrimSpace(documentID)

	var (
		resolved *domain.ResolvedAnalysis
		err      error
	)
	if documentID == "" {
		resolved, err = l.fromCache(ctx)
	} else {
		resolved, err = l.fetch(ctx, documentID)
	}

	source := domain.SourceLive
	if documentID == "" {
		source = domain.SourceCache
	}
	l.recorder.ObserveAnalysis(source, err)

	event := domain.LifecycleEvent{
		Type:       domain.EventAnalysisResolved,
		DocumentID: documentID,
		Source:     source,
		OccurredAt: l.clock.Now().UTC(),
	}
	if err != nil {
		event.Type = domain.EventAnalysisFailed
		event.Error = domain.UserMessage(err)
	} else {
		event.DocumentID = resolved.Record.DocumentID
	}
	if pubErr := l.events.Publish(ctx, event); pubErr != nil {
		l.logger.Warn("lifecycle_publish_failed", "type", event.Type, "error", pubErr)
	}

	return resolved, err
}

func (l *AnalysisLoader) fromCache(ctx context.Context) (*domain.ResolvedAnalysis, error) {
	record, ok := l.cache.Load(ctx)
	if !ok {
		return nil, domain.WrapError(
			domain.ErrNoAnalysisAvailable,
			"resolve analysis",
			errors.New("no document id and no usable cached analysis"),
		)
	}
	l.logger.Info("analysis_resolved", "source", domain.SourceCache, "document_id", record.DocumentID)
	return &domain.ResolvedAnalysis{Record: *record, Source: domain.SourceCache}, nil
}

func (l *AnalysisLoader) fetch(ctx context.Context, documentID string) (*domain.ResolvedAnalysis, error) {
	payload, err := l.gateway.FetchAnalysis(ctx, documentID)
	if err != nil {
		l.logger.Warn("analysis_fetch_failed",
			"document_id", documentID,
			"status", domain.StatusCodeOf(err),
			"error", err,
		)
		return nil, fmt.Errorf("fetch analysis %s: %w", documentID, err)
	}
	if payload == nil || payload.Summary == "" || payload.SimilarPatents == nil {
		return nil, domain.WrapError(
			domain.ErrMalformedResponse,
			"fetch analysis "+documentID,
			errors.New("summary or similarPatents missing"),
		)
	}

	record := domain.AnalysisRecord{
		DocumentID:      documentID,
		Title:           payload.Title,
		Date:            payload.Date,
		Applicant:       payload.Applicant,
		Summary:         payload.Summary,
		NoveltyScore:    payload.NoveltyScore,
		PotentialIssues: payload.PotentialIssues,
		Recommendations: payload.Recommendations,
		SimilarPatents:  payload.SimilarPatents,
		Timestamp:       l.clock.Now().UTC(),
	}
	l.cache.Save(ctx, record)

	l.logger.Info("analysis_resolved",
		"source", domain.SourceLive,
		"document_id", documentID,
		"novelty_score", record.NoveltyScore,
		"similar_patents", len(record.SimilarPatents),
	)
	return &domain.ResolvedAnalysis{Record: record, Source: domain.SourceLive}, nil
}
