package usecase

import (
	"context"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

type nopRecorder struct{}

func (nopRecorder) ObserveUpload(domain.UploadPhase) {}
func (nopRecorder) ObserveStage(domain.ProcessingStage) {}
func (nopRecorder) ObserveAnalysis(domain.AnalysisSource, error) {}
func (nopRecorder) ObserveCacheLookup(bool) {}
func (nopRecorder) ObserveQuery(string) {}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, domain.LifecycleEvent) error { return nil }
