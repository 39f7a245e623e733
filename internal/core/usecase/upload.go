package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

type UploadOptions struct {
	MaxSize   int64
	Inspector ports.DocumentInspector
	Events    ports.LifecycleEvents
	Recorder  ports.LifecycleRecorder
	Clock     ports.Clock
	Logger    *slog.Logger
}

// UploadCoordinator drives one selected file through validation, transfer and
// acknowledgment. A failed upload is never retried automatically.
type UploadCoordinator struct {
	gateway   ports.IngestGateway
	maxSize   int64
	inspector ports.DocumentInspector
	events    ports.LifecycleEvents
	recorder  ports.LifecycleRecorder
	clock     ports.Clock
	logger    *slog.Logger

	mu    sync.Mutex
	state domain.UploadState
}

func NewUploadCoordinator(gateway ports.IngestGateway, opts UploadOptions) *UploadCoordinator {
	if opts.MaxSize <= 0 {
		opts.MaxSize = domain.DefaultMaxUploadSize
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &UploadCoordinator{
		gateway:   gateway,
		maxSize:   opts.MaxSize,
		inspector: opts.Inspector,
		events:    opts.Events,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
		logger:    opts.Logger,
		state:     domain.UploadState{Phase: domain.UploadIdle},
	}
}

// SelectFile accepts only PDFs no larger than the size limit. A rejected
// candidate leaves the previous selection untouched.
func (uc *UploadCoordinator) SelectFile(file domain.FileRef) error {
	if err := uc.validate(file); err != nil {
		return err
	}

	pages := uc.inspect(file)

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.state.Phase == domain.UploadUploading {
		return domain.WrapError(domain.ErrInFlight, "select file", errors.New("upload in progress"))
	}

	selected := file
	uc.state = domain.UploadState{
		File:  &selected,
		Pages: pages,
		Phase: domain.UploadIdle,
	}
	uc.logger.Info("upload_file_selected", "name", file.Name, "size_bytes", file.Size, "pages", uc.state.Pages)
	return nil
}

func (uc *UploadCoordinator) validate(file domain.FileRef) error {
	if file.MimeType != domain.PDFMimeType {
		return &domain.ValidationError{
			Field:   "file",
			Title:   "Invalid file format",
			Message: "Please upload a PDF file.",
		}
	}
	if file.Size > uc.maxSize {
		return &domain.ValidationError{
			Field:   "file",
			Title:   "File too large",
			Message: fmt.Sprintf("Please upload a file smaller than %dMB.", uc.maxSize/(1024*1024)),
		}
	}
	return nil
}

// inspect reads the page count when an inspector is configured; any failure
// just leaves the count unknown.
func (uc *UploadCoordinator) inspect(file domain.FileRef) int {
	if uc.inspector == nil || file.Open == nil {
		return 0
	}
	rc, err := file.Open()
	if err != nil {
		return 0
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, uc.maxSize+1))
	if err != nil {
		return 0
	}
	pages, err := uc.inspector.PageCount(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		uc.logger.Debug("upload_inspect_failed", "name", file.Name, "error", err)
		return 0
	}
	return pages
}

// Upload transfers the selected file and returns the document identifier.
func (uc *UploadCoordinator) Upload(ctx context.Context, progress ports.UploadProgress) (string, error) {
	file, err := uc.begin()
	if err != nil {
		return "", err
	}

	body, err := file.Open()
	if err != nil {
		return "", uc.fail(ctx, domain.WrapError(domain.ErrInvalidInput, "open selected file", err))
	}
	defer body.Close()

	documentID, err := uc.gateway.Upload(ctx, file.Name, body, file.Size, func(percent int) {
		uc.setProgress(percent)
		if progress != nil {
			progress(percent)
		}
	})
	if err != nil {
		return "", uc.fail(ctx, err)
	}
	if documentID == "" {
		return "", uc.fail(ctx, domain.WrapError(
			domain.ErrMalformedResponse,
			"upload",
			errors.New("identifier missing"),
		))
	}

	uc.mu.Lock()
	uc.state.Phase = domain.UploadSucceeded
	uc.state.Progress = 100
	uc.state.DocumentID = documentID
	uc.mu.Unlock()

	uc.recorder.ObserveUpload(domain.UploadSucceeded)
	uc.publish(ctx, domain.LifecycleEvent{Type: domain.EventUploadSucceeded, DocumentID: documentID})
	uc.logger.Info("upload_succeeded", "name", file.Name, "document_id", documentID)
	return documentID, nil
}

func (uc *UploadCoordinator) begin() (domain.FileRef, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.state.File == nil {
		return domain.FileRef{}, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("no file selected"))
	}
	if uc.state.Phase == domain.UploadUploading {
		return domain.FileRef{}, domain.WrapError(domain.ErrInFlight, "upload", errors.New("upload in progress"))
	}
	if uc.state.File.Open == nil {
		return domain.FileRef{}, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("selected file has no content"))
	}

	uc.state.Phase = domain.UploadUploading
	uc.state.Progress = 0
	uc.state.DocumentID = ""
	uc.state.Error = ""
	return *uc.state.File, nil
}

func (uc *UploadCoordinator) setProgress(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	uc.mu.Lock()
	if uc.state.Phase == domain.UploadUploading {
		uc.state.Progress = percent
	}
	uc.mu.Unlock()
}

func (uc *UploadCoordinator) fail(ctx context.Context, err error) error {
	out := &UploadError{Message: uploadFailureMessage(err), Err: err}

	uc.mu.Lock()
	uc.state.Phase = domain.UploadFailed
	uc.state.Error = out.Message
	uc.mu.Unlock()

	uc.recorder.ObserveUpload(domain.UploadFailed)
	uc.publish(ctx, domain.LifecycleEvent{Type: domain.EventUploadFailed, Error: out.Message})
	uc.logger.Warn("upload_failed", "status", domain.StatusCodeOf(err), "error", err)
	return out
}

// Remove clears the selection and resets progress and phase.
func (uc *UploadCoordinator) Remove() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.state = domain.UploadState{Phase: domain.UploadIdle}
}

func (uc *UploadCoordinator) State() domain.UploadState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := uc.state
	if out.File != nil {
		file := *out.File
		out.File = &file
	}
	return out
}

func (uc *UploadCoordinator) publish(ctx context.Context, event domain.LifecycleEvent) {
	event.OccurredAt = uc.clock.Now().UTC()
	if err := uc.events.Publish(ctx, event); err != nil {
		uc.logger.Warn("lifecycle_publish_failed", "type", event.Type, "error", err)
	}
}

// UploadError carries the user-facing failure text next to its cause.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *UploadError) UserMessage() string {
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

func uploadFailureMessage(err error) string {
	if domain.IsKind(err, domain.ErrMalformedResponse) {
		return "Upload succeeded but no Document ID received. Could not get document identifier from the server."
	}

	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		switch transportErr.StatusCode {
		case 413:
			return "File too large. Please upload a smaller file."
		case 415:
			return "Invalid file format. Please upload a PDF file."
		}
		if transportErr.StatusCode != 0 && transportErr.Message != "" {
			return transportErr.Message
		}
	}
	return "An error occurred during the upload. Please try again."
}
