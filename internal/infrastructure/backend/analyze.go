package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// FetchAnalysis reads GET /analyze/{document_id}. The read is idempotent and
// goes through the retrying executor.
func (c *Client) FetchAnalysis(ctx context.Context, documentID string) (*domain.AnalysisPayload, error) {
	var payload *domain.AnalysisPayload
	err := c.executor.Execute(ctx, opAnalyze, func(ctx context.Context) error {
		p, err := c.fetchAnalysis(ctx, documentID)
		payload = p
		return err
	}, classifyBackendError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(opAnalyze, err)
	}
	return payload, nil
}

func (c *Client) fetchAnalysis(ctx context.Context, documentID string) (*domain.AnalysisPayload, error) {
	endpoint := c.baseURL + "/analyze/" + url.PathEscape(documentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(ctx, opAnalyze, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload domain.AnalysisPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode analyze response", err)
	}
	return &payload, nil
}
