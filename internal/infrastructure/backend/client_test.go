package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/resilience"
)

func newTestClient(url string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(url, Options{
		Timeout: 5 * time.Second,
		Logger:  logger,
		Executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    3,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
			BreakerEnabled:      false,
			Logger:              logger,
		}),
	})
}

func TestUploadSendsMultipartFileAndReportsProgress(t *testing.T) {
	var gotName, gotBody, gotType, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			http.NotFound(w, r)
			return
		}
		gotRequestID = r.Header.Get(requestIDHeader)
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error = %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"message":"PDF uploaded and processed successfully.","document_id":"patent.pdf"}`))
	}))
	defer server.Close()

	var (
		mu    sync.Mutex
		ticks []int
	)
	content := strings.Repeat("%PDF-1.7 ", 4096)
	id, err := newTestClient(server.URL).Upload(context.Background(), "/tmp/in/patent.pdf", strings.NewReader(content), int64(len(content)), func(p int) {
		mu.Lock()
		ticks = append(ticks, p)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "patent.pdf" {
		t.Fatalf("expected document id patent.pdf, got %q", id)
	}
	if gotName != "patent.pdf" || gotBody != content || gotType != domain.PDFMimeType {
		t.Fatalf("unexpected part name=%q type=%q body length=%d", gotName, gotType, len(gotBody))
	}
	if gotRequestID == "" {
		t.Fatalf("expected a request id header")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) == 0 || ticks[len(ticks)-1] != 100 {
		t.Fatalf("progress must end at 100, got %v", ticks)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] <= ticks[i-1] {
			t.Fatalf("progress must increase, got %v", ticks)
		}
	}
}

func TestUploadReturnsEmptyIDWhenFieldMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	id, err := newTestClient(server.URL).Upload(context.Background(), "a.pdf", strings.NewReader("x"), 1, nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}

func TestUploadIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"Server error during file processing."}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Upload(context.Background(), "a.pdf", strings.NewReader("x"), 1, nil)
	if domain.StatusCodeOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 transport error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("503 should be marked temporary, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("upload must be attempted once, got %d", calls.Load())
	}
}

func TestFetchAnalysisDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze/my doc.pdf" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"title":           "Robotic process automation",
			"summary":         "Summary.",
			"noveltyScore":    72,
			"potentialIssues": []string{"prior art"},
			"recommendations": []string{"narrow claims"},
			"similarPatents": []map[string]any{
				{"id": "US-1", "title": "Bots", "similarity": 88, "date": "2019-01-01", "assignee": "Globex"},
			},
		})
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "my doc.pdf")
	if err != nil {
		t.Fatalf("FetchAnalysis() error = %v", err)
	}
	if payload.NoveltyScore != 72 || len(payload.SimilarPatents) != 1 || payload.SimilarPatents[0].Similarity != 88 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestFetchAnalysisAcceptsFractionalScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"title": "doc-42",
			"date": "Unknown",
			"applicant": "Unknown",
			"summary": "First.\n\nSecond.",
			"noveltyScore": 72,
			"potentialIssues": ["prior art"],
			"recommendations": ["narrow claims"],
			"similarPatents": [
				{"id": "US-1", "title": "Bots", "similarity": 87.53, "date": "2019-01-01", "assignee": "Globex", "excerpt": "A bot that..."},
				{"id": "US-2", "title": "Mining", "similarity": 100.0, "date": "2020-05-05", "assignee": "Initech", "excerpt": "Process mining..."}
			]
		}`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "doc-42")
	if err != nil {
		t.Fatalf("FetchAnalysis() error = %v", err)
	}
	if len(payload.SimilarPatents) != 2 {
		t.Fatalf("similar patents = %d, want 2", len(payload.SimilarPatents))
	}
	if payload.SimilarPatents[0].Similarity != 88 || payload.SimilarPatents[1].Similarity != 100 {
		t.Fatalf("unexpected similarities %+v", payload.SimilarPatents)
	}
	if payload.SimilarPatents[1].Assignee != "Initech" {
		t.Fatalf("unexpected patent %+v", payload.SimilarPatents[1])
	}
}

func TestFetchAnalysisKeepsNullSimilarPatentsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":"x","similarPatents":null}`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "doc")
	if err != nil {
		t.Fatalf("FetchAnalysis() error = %v", err)
	}
	if payload.SimilarPatents != nil {
		t.Fatalf("null similarPatents must decode to nil")
	}
}

func TestFetchAnalysisMapsErrorBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server message", status: http.StatusNotFound, body: `{"error":"Analysis not found or failed for document ID: x"}`, want: "Analysis not found or failed for document ID: x"},
		{name: "no body", status: http.StatusNotFound, body: ``, want: "Failed to fetch analysis data. Status: 404"},
		{name: "html body", status: http.StatusBadRequest, body: `<html>oops</html>`, want: "Failed to fetch analysis data. Status: 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "x")
			var transportErr *domain.TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("expected *domain.TransportError, got %v", err)
			}
			if transportErr.StatusCode != tt.status || transportErr.Message != tt.want {
				t.Fatalf("got status=%d message=%q", transportErr.StatusCode, transportErr.Message)
			}
		})
	}
}

func TestFetchAnalysisRetriesUnavailableBackend(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"summary":"ok","similarPatents":[]}`))
	}))
	defer server.Close()

	payload, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "doc")
	if err != nil {
		t.Fatalf("FetchAnalysis() error = %v", err)
	}
	if payload.Summary != "ok" || calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, got calls=%d", calls.Load())
	}
}

func TestFetchAnalysisMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"summary":`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).FetchAnalysis(context.Background(), "doc")
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestQuerySendsDocumentScope(t *testing.T) {
	var got domain.QueryRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"answer":"It automates workflows.","sources":["patent.pdf"]}`))
	}))
	defer server.Close()

	answer, err := newTestClient(server.URL).Query(context.Background(), domain.QueryRequest{Question: "What?", DocumentID: "patent.pdf"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got.Question != "What?" || got.DocumentID != "patent.pdf" {
		t.Fatalf("unexpected request %+v", got)
	}
	if answer.Answer != "It automates workflows." || len(answer.Sources) != 1 {
		t.Fatalf("unexpected answer %+v", answer)
	}
}

func TestQueryHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Query(ctx, domain.QueryRequest{Question: "slow?"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if domain.StatusCodeOf(err) != 0 {
		t.Fatalf("canceled request has no status")
	}
}

func TestRequestIDFromContextIsForwarded(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(requestIDHeader)
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer server.Close()

	ctx := WithRequestID(context.Background(), "req-123")
	if _, err := newTestClient(server.URL).Query(ctx, domain.QueryRequest{Question: "q"}); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "req-123" {
		t.Fatalf("expected request id req-123, got %q", got)
	}
}
