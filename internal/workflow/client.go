package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/readiness-audit/internal/form"
)

const DefaultTimeout = 2 * time.Minute

// HTTPEngine posts the payload as JSON to a webhook (an n8n workflow in
// production) and decodes the audit response.
type HTTPEngine struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

func NewHTTPEngine(url string, timeout time.Duration) *HTTPEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPEngine{
		url:     strings.TrimSpace(url),
		timeout: timeout,
		http:    &http.Client{},
	}
}

func (e *HTTPEngine) Dispatch(ctx context.Context, p form.Payload) (*AuditResponse, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	blob, status, err := e.DoJSON(ctx, http.MethodPost, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrPending
		}
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Status: status, Body: truncate(string(blob), 512)}
	}

	var resp AuditResponse
	if err := json.Unmarshal(blob, &resp); err != nil {
		// The engine took the request but its reply is not an audit
		// response; treat it as accepted without a report.
		return &AuditResponse{SubmissionID: p.SubmissionID, Error: "undecodable engine response"}, nil
	}
	return &resp, nil
}

func (e *HTTPEngine) DoJSON(ctx context.Context, method string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, e.url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return blob, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
