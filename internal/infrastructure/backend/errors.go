package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/resilience"
)

const maxErrorBody = 4096

func transportFailure(operation string, err error) error {
	return &domain.TransportError{Operation: operation, Err: err}
}

// decodeHTTPError reads the backend's {"error": "..."} body. When no message
// is present the analyze operation falls back to a status line.
func decodeHTTPError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Error string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		message = strings.TrimSpace(body.Error)
	}
	if message == "" && operation == opAnalyze {
		message = fmt.Sprintf("Failed to fetch analysis data. Status: %d", resp.StatusCode)
	}

	return &domain.TransportError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Message:    message,
		Err:        fmt.Errorf("backend %s status: %s", operation, resp.Status),
	}
}

func classifyBackendError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCanceled(err) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	if status := domain.StatusCodeOf(err); status != 0 {
		if resilience.RetryableStatus(status) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: status >= http.StatusInternalServerError,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// wrapTemporaryIfNeeded marks failures a later attempt may fix.
func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return &domain.TransportError{
			Operation: operation,
			Message:   "The analysis service is temporarily unavailable. Please try again later.",
			Err:       domain.WrapError(domain.ErrTemporary, operation, err),
		}
	}
	if classifyBackendError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
