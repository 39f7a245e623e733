package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

type ProcessingMode string

const (
	// ProcessingSimulated advances on fixed client-side delays. The backend
	// gives no completion signal in this mode, so failures go unnoticed.
	ProcessingSimulated ProcessingMode = "simulated"
	// ProcessingStatus advances only on backend-pushed status.
	ProcessingStatus ProcessingMode = "status"
)

const (
	DefaultProcessingDelay = 3 * time.Second
	DefaultHandoffDelay    = 1500 * time.Millisecond
)

// stageTransitions is the full transition table. Stages never move backward.
var stageTransitions = map[domain.ProcessingStage][]domain.ProcessingStage{
	domain.StageUploaded:   {domain.StageProcessing},
	domain.StageProcessing: {domain.StageComplete, domain.StageFailed},
}

func canTransition(from, to domain.ProcessingStage) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ProcessingOptions struct {
	Mode            ProcessingMode
	ProcessingDelay time.Duration
	HandoffDelay    time.Duration
	Feed            ports.StatusFeed
	Events          ports.LifecycleEvents
	Recorder        ports.LifecycleRecorder
	Logger          *slog.Logger
}

type ProcessingTracker struct {
	scheduler ports.Scheduler
	opts      ProcessingOptions
}

func NewProcessingTracker(scheduler ports.Scheduler, opts ProcessingOptions) *ProcessingTracker {
	if opts.Mode == "" {
		opts.Mode = ProcessingSimulated
	}
	if opts.ProcessingDelay <= 0 {
		opts.ProcessingDelay = DefaultProcessingDelay
	}
	if opts.HandoffDelay <= 0 {
		opts.HandoffDelay = DefaultHandoffDelay
	}
	if opts.Events == nil {
		opts.Events = nopEvents{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ProcessingTracker{scheduler: scheduler, opts: opts}
}

// Start moves the document to the processing stage immediately and schedules
// the rest of the sequence. Canceling ctx stops pending timers and suppresses
// the handoff.
func (t *ProcessingTracker) Start(
	ctx context.Context,
	documentID string,
	onStage func(domain.ProcessingStage),
) (*ProcessingRun, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start processing", errors.New("document id is required"))
	}
	if t.opts.Mode == ProcessingStatus && t.opts.Feed == nil {
		return nil, fmt.Errorf("start processing: status mode requires a status feed")
	}

	run := &ProcessingRun{
		documentID: documentID,
		tracker:    t,
		onStage:    onStage,
		stage:      domain.StageUploaded,
		done:       make(chan struct{}),
	}

	var updates <-chan domain.BackendStatus
	if t.opts.Mode == ProcessingStatus {
		// The subscription lives only as long as the run.
		watchCtx, cancelWatch := context.WithCancel(ctx)
		feed, err := t.opts.Feed.Watch(watchCtx, documentID)
		if err != nil {
			cancelWatch()
			return nil, fmt.Errorf("watch processing status: %w", err)
		}
		updates = feed
		run.cancelWatch = cancelWatch
	}

	run.advance(ctx, domain.StageProcessing)

	switch t.opts.Mode {
	case ProcessingStatus:
		go run.follow(ctx, updates)
	default:
		run.schedule(t.opts.ProcessingDelay, func() {
			if run.advance(ctx, domain.StageComplete) {
				run.schedule(t.opts.HandoffDelay, func() { run.finish(nil) })
			}
		})
	}

	stop := context.AfterFunc(ctx, func() { run.finish(ctx.Err()) })
	go func() {
		<-run.done
		stop()
	}()

	return run, nil
}

// ProcessingRun tracks one document through the stage sequence.
type ProcessingRun struct {
	documentID string
	tracker    *ProcessingTracker
	onStage    func(domain.ProcessingStage)

	cancelWatch context.CancelFunc

	mu     sync.Mutex
	stage  domain.ProcessingStage
	timers []ports.Timer
	closed bool
	err    error
	done   chan struct{}
}

func (r *ProcessingRun) DocumentID() string {
	return r.documentID
}

func (r *ProcessingRun) Stage() domain.ProcessingStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

// Done is closed once the run hands off, fails or is canceled.
func (r *ProcessingRun) Done() <-chan struct{} {
	return r.done
}

func (r *ProcessingRun) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run ends. A nil error means the analysis for the
// document can now be loaded.
func (r *ProcessingRun) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ProcessingRun) advance(ctx context.Context, to domain.ProcessingStage) bool {
	r.mu.Lock()
	if r.closed || !canTransition(r.stage, to) {
		r.mu.Unlock()
		return false
	}
	from := r.stage
	r.stage = to
	r.mu.Unlock()

	t := r.tracker
	t.opts.Recorder.ObserveStage(to)
	t.opts.Logger.Info("processing_stage_changed",
		"document_id", r.documentID,
		"from", int(from),
		"to", int(to),
		"label", to.Label(),
	)
	event := domain.LifecycleEvent{
		Type:       domain.EventStageChanged,
		DocumentID: r.documentID,
		Stage:      to,
		OccurredAt: t.scheduler.Now().UTC(),
	}
	if err := t.opts.Events.Publish(context.WithoutCancel(ctx), event); err != nil {
		t.opts.Logger.Warn("lifecycle_publish_failed", "type", event.Type, "error", err)
	}
	if r.onStage != nil {
		r.onStage(to)
	}
	return true
}

func (r *ProcessingRun) schedule(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.timers = append(r.timers, r.tracker.scheduler.AfterFunc(d, fn))
}

func (r *ProcessingRun) follow(ctx context.Context, updates <-chan domain.BackendStatus) {
	for {
		select {
		case <-r.done:
			return
		case status, ok := <-updates:
			if !ok {
				err := ctx.Err()
				if err == nil {
					err = fmt.Errorf("status feed closed for document %s", r.documentID)
				}
				r.finish(err)
				return
			}
			switch status.Status {
			case domain.BackendStatusReady:
				if r.advance(ctx, domain.StageComplete) {
					r.schedule(r.tracker.opts.HandoffDelay, func() { r.finish(nil) })
				}
			case domain.BackendStatusFailed:
				reason := status.Error
				if reason == "" {
					reason = "backend reported failure"
				}
				if r.advance(ctx, domain.StageFailed) {
					r.finish(domain.WrapError(domain.ErrProcessingFailed, "process document "+r.documentID, errors.New(reason)))
				}
			}
		}
	}
}

func (r *ProcessingRun) finish(err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.err = err
	timers := r.timers
	r.timers = nil
	r.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	if r.cancelWatch != nil {
		r.cancelWatch()
	}
	if err != nil {
		r.tracker.opts.Logger.Warn("processing_ended", "document_id", r.documentID, "error", err)
	}
	close(r.done)
}
