package domain

import "time"

type LifecycleEventType string

const (
	EventUploadSucceeded  LifecycleEventType = "upload.succeeded"
	EventUploadFailed     LifecycleEventType = "upload.failed"
	EventStageChanged     LifecycleEventType = "processing.stage_changed"
	EventAnalysisResolved LifecycleEventType = "analysis.resolved"
	EventAnalysisFailed   LifecycleEventType = "analysis.failed"
)

type LifecycleEvent struct {
	Type       LifecycleEventType `json:"type"`
	DocumentID string             `json:"document_id,omitempty"`
	Stage      ProcessingStage    `json:"stage,omitempty"`
	Source     AnalysisSource     `json:"source,omitempty"`
	Error      string             `json:"error,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
