package domain

type ProcessingStage int

const (
	StageUploaded   ProcessingStage = 1
	StageProcessing ProcessingStage = 2
	StageComplete   ProcessingStage = 3
	// StageFailed is only reported when processing follows real backend status.
	StageFailed ProcessingStage = -1
)

func (s ProcessingStage) Label() string {
	switch s {
	case StageUploaded:
		return "Pending"
	case StageProcessing:
		return "Processing..."
	case StageComplete:
		return "Complete"
	case StageFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s ProcessingStage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// PipelineStep is a display-only backend step derived from the stage.
type PipelineStep struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

// PipelineSteps returns nothing before processing has started.
func PipelineSteps(stage ProcessingStage) []PipelineStep {
	if stage == StageUploaded || stage == 0 {
		return nil
	}

	status := func(active string) string {
		switch stage {
		case StageComplete:
			return "Complete"
		case StageFailed:
			return "Failed"
		default:
			return active
		}
	}

	return []PipelineStep{
		{Title: "Text Extraction", Status: status("In progress...")},
		{Title: "Embedding Generation", Status: status("In progress...")},
		{Title: "Similar Patent Search", Status: status("Waiting...")},
		{Title: "Analysis Generation", Status: status("Waiting...")},
	}
}

// BackendStatus is a processing status pushed by the backend.
type BackendStatus struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

const (
	BackendStatusReady  = "ready"
	BackendStatusFailed = "failed"
)
