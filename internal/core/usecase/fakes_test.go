package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type kvFake struct {
	mu     sync.Mutex
	values map[string][]byte
	setErr error
}

func newKVFake() *kvFake {
	return &kvFake{values: make(map[string][]byte)}
}

func (f *kvFake) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrKeyNotFound, "get", errors.New(key))
	}
	return append([]byte(nil), v...), nil
}

func (f *kvFake) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = append([]byte(nil), value...)
	return nil
}

func (f *kvFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *kvFake) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok
}

// schedulerFake is a virtual clock. Timers only fire from Advance.
type schedulerFake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timerFake
}

type timerFake struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
	owner   *schedulerFake
}

func (t *timerFake) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newSchedulerFake(now time.Time) *schedulerFake {
	return &schedulerFake{now: now}
}

func (s *schedulerFake) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *schedulerFake) AfterFunc(d time.Duration, fn func()) ports.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &timerFake{at: s.now.Add(d), fn: fn, owner: s}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves virtual time forward, firing due timers in order. Callbacks
// run without the scheduler lock so they may schedule more timers.
func (s *schedulerFake) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	for {
		sort.SliceStable(s.timers, func(i, j int) bool { return s.timers[i].at.Before(s.timers[j].at) })
		var next *timerFake
		for _, t := range s.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		s.now = next.at
		s.mu.Unlock()
		next.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

func (s *schedulerFake) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (f *eventsFake) Publish(_ context.Context, event domain.LifecycleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *eventsFake) types() []domain.LifecycleEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LifecycleEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type analysisGatewayFake struct {
	mu       sync.Mutex
	payload  *domain.AnalysisPayload
	err      error
	requests []string
}

func (f *analysisGatewayFake) FetchAnalysis(_ context.Context, documentID string) (*domain.AnalysisPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, documentID)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type ingestGatewayFake struct {
	documentID string
	err        error
	ticks      []int
	body       string
	filename   string
}

func (f *ingestGatewayFake) Upload(_ context.Context, filename string, body io.Reader, _ int64, progress ports.UploadProgress) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.body = string(raw)
	f.filename = filename
	for _, tick := range f.ticks {
		progress(tick)
	}
	if f.err != nil {
		return "", f.err
	}
	return f.documentID, nil
}

type queryGatewayFake struct {
	mu       sync.Mutex
	answer   *domain.QueryAnswer
	err      error
	block    chan struct{}
	started  chan struct{}
	requests []domain.QueryRequest
}

func (f *queryGatewayFake) Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryAnswer, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type statusFeedFake struct {
	updates chan domain.BackendStatus

	mu  sync.Mutex
	ctx context.Context
}

func (f *statusFeedFake) Watch(ctx context.Context, _ string) (<-chan domain.BackendStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctx = ctx
	return f.updates, nil
}

func (f *statusFeedFake) watchErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctx == nil {
		return errors.New("watch was never called")
	}
	return f.ctx.Err()
}

func samplePayload() *domain.AnalysisPayload {
	return &domain.AnalysisPayload{
		Title:           "Adaptive robotic process automation",
		Date:            "2024-03-01",
		Applicant:       "Acme Corp",
		Summary:         "First paragraph.\n\nSecond paragraph.",
		NoveltyScore:    72,
		PotentialIssues: []string{"Overlaps with prior RPA claims"},
		Recommendations: []string{"Narrow claim 1"},
		SimilarPatents: []domain.SimilarPatent{
			{ID: "US-1", Title: "Bot orchestration", Similarity: 88, Date: "2019-01-01", Assignee: "Globex"},
			{ID: "US-2", Title: "Workflow mining", Similarity: 61, Date: "2020-05-05", Assignee: "Initech"},
		},
	}
}

func sampleRecord(documentID string, ts time.Time) domain.AnalysisRecord {
	p := samplePayload()
	return domain.AnalysisRecord{
		DocumentID:      documentID,
		Title:           p.Title,
		Date:            p.Date,
		Applicant:       p.Applicant,
		Summary:         p.Summary,
		NoveltyScore:    p.NoveltyScore,
		PotentialIssues: p.PotentialIssues,
		Recommendations: p.Recommendations,
		SimilarPatents:  p.SimilarPatents,
		Timestamp:       ts.UTC(),
	}
}
