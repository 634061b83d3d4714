// Package httpx holds the JSON-over-HTTP plumbing shared by the Exa and GoHighLevel clients.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/leadfinder/internal/core"
	"github.com/shpitdev/leadfinder/internal/redact"
	"github.com/shpitdev/leadfinder/internal/version"
)

const snippetMax = 256

// HTTPError is a sanitized summary of a non-2xx API response.
//
// Do not put raw response bodies here; they can carry PII and tokens.
type HTTPError struct {
	Service    string
	Op         string
	StatusCode int
	Status     string

	// Message is the provider's own error text when the body had one.
	Message string
	// Snippet is a redacted, truncated hint for bodies without a recognizable message.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	service := strings.TrimSpace(e.Service)
	if service == "" {
		service = "http"
	}
	parts := []string{
		fmt.Sprintf("%s api error: op=%s status=%s", service, strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Conflict reports whether the provider answered 409.
func (e *HTTPError) Conflict() bool {
	return e != nil && e.StatusCode == http.StatusConflict
}

// errorEnvelope covers the message shapes Exa and GoHighLevel both use.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message json.RawMessage `json:"message"`
}

func envelopeMessage(body []byte) string {
	var env errorEnvelope
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{env.Message, env.Error} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return s
		}
		// GHL sometimes returns message as a list of validation strings.
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return ""
}

// NewHTTPError builds a sanitized error from a non-2xx response. 429 and 5xx come back
// wrapped in core.TransientError so the worker pool retries them.
func NewHTTPError(service, op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Service: service, Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	if msg := envelopeMessage(body); msg != "" {
		h.Message = redact.Truncate([]byte(msg), snippetMax)
	} else {
		h.Snippet = redact.Truncate(body, snippetMax)
	}
	if Retryable(h.StatusCode) {
		te := &core.TransientError{Err: h}
		if resp != nil {
			te.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return te
	}
	return h
}

// ParseRetryAfter reads a Retry-After value in either delta-seconds or HTTP-date form.
// Missing, malformed or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0
	}
	if d := at.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Retryable reports whether a status code is worth retrying.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// AsHTTPError unwraps err to an *HTTPError when one is present.
func AsHTTPError(err error) (*HTTPError, bool) {
	var h *HTTPError
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}

// Request describes one JSON call.
type Request struct {
	Service string
	Op      string
	Method  string
	URL     string
	Header  http.Header
	Body    any
}

// DoJSON sends req with a JSON body (when Body is non-nil) and decodes a 2xx response
// into out (when out is non-nil). Non-2xx responses become *HTTPError.
func DoJSON(ctx context.Context, client *http.Client, req Request, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", req.Service, req.Op, err)
		}
		body = bytes.NewReader(b)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", req.Service, req.Op, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Service, req.Op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &core.TransientError{Err: fmt.Errorf("%s %s: read response: %w", req.Service, req.Op, err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewHTTPError(req.Service, req.Op, resp, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Service, req.Op, err)
	}
	return nil
}
