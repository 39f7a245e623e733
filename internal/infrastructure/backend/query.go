package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// Query posts a question to POST /query. Questions are not retried.
func (c *Client) Query(ctx context.Context, q domain.QueryRequest) (*domain.QueryAnswer, error) {
	var answer *domain.QueryAnswer
	err := c.executor.ExecuteOnce(ctx, opQuery, func(ctx context.Context) error {
		a, err := c.query(ctx, q)
		answer = a
		return err
	}, classifyBackendError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(opQuery, err)
	}
	return answer, nil
}

func (c *Client) query(ctx context.Context, q domain.QueryRequest) (*domain.QueryAnswer, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, opQuery, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var answer domain.QueryAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, domain.WrapError(domain.ErrMalformedResponse, "decode query response", err)
	}
	return &answer, nil
}
