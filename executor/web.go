package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// WebConfig bounds fetch_web/call_api: domain allow/deny lists, a response
// size cap, and a client timeout.
type WebConfig struct {
	Timeout         time.Duration
	MaxResponseSize int64
	AllowedDomains  []string
	DeniedDomains   []string
	UserAgent       string
}

func DefaultWebConfig() WebConfig {
	return WebConfig{
		Timeout:         30 * time.Second,
		MaxResponseSize: 10 * 1024 * 1024,
		UserAgent:       "quoracle/1.0",
	}
}

// WebExecutor implements fetch_web and call_api. Both kinds are one HTTP
// round trip with a different params shape (call_api adds method/body/
// headers explicitly; fetch_web defaults to GET), so they share one
// implementation.
type WebExecutor struct {
	Config WebConfig
	client *http.Client
}

func NewWebExecutor(cfg WebConfig) *WebExecutor {
	return &WebExecutor{Config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// FetchWeb implements fetch_web.
func (e *WebExecutor) FetchWeb(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	rawURL, _ := params["url"].(string)
	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	return e.do(ctx, rawURL, method, nil, nil)
}

// CallAPI implements call_api, which additionally carries headers and body.
func (e *WebExecutor) CallAPI(ctx context.Context, _ action.Kind, params map[string]any, scope dispatch.Scope) (dispatch.Result, error) {
	rawURL, _ := params["url"].(string)
	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	headers, _ := params["headers"].(map[string]any)
	return e.do(ctx, rawURL, method, headers, params["body"])
}

func (e *WebExecutor) do(ctx context.Context, rawURL, method string, headers map[string]any, body any) (dispatch.Result, error) {
	if rawURL == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "invalid URL", err)
	}
	if err := e.validateDomain(parsed.Hostname()); err != nil {
		return dispatch.Result{}, err
	}

	var reqBody io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reqBody = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to encode body", err)
			}
			reqBody = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), rawURL, reqBody)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to build request", err)
	}
	req.Header.Set("User-Agent", e.Config.UserAgent)
	for k, v := range headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindRequestTimeout, "request failed", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, e.Config.MaxResponseSize+1)
	respBody, err := io.ReadAll(limited)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidResponseFormat, "failed to read response", err)
	}
	if int64(len(respBody)) > e.Config.MaxResponseSize {
		return dispatch.Result{}, errtag.New(errtag.KindInvalidParam, "response too large")
	}
	if kind, ok := classifyHTTPStatus(resp.StatusCode); ok {
		return dispatch.Result{}, errtag.New(kind, fmt.Sprintf("HTTP %d from %s", resp.StatusCode, rawURL))
	}

	return dispatch.Result{Data: map[string]any{
		"status_code": resp.StatusCode,
		"content":     string(respBody),
		"url":         rawURL,
		"method":      strings.ToUpper(method),
	}}, nil
}

func (e *WebExecutor) validateDomain(host string) error {
	for _, denied := range e.Config.DeniedDomains {
		if matchesDomain(host, denied) {
			return errtag.New(errtag.KindForbidden, fmt.Sprintf("domain not allowed: %s", host))
		}
	}
	if len(e.Config.AllowedDomains) == 0 {
		return nil
	}
	for _, allowed := range e.Config.AllowedDomains {
		if matchesDomain(host, allowed) {
			return nil
		}
	}
	return errtag.New(errtag.KindForbidden, fmt.Sprintf("domain not allowed: %s", host))
}

func matchesDomain(host, pattern string) bool {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}

func classifyHTTPStatus(status int) (errtag.Kind, bool) {
	switch status {
	case http.StatusUnauthorized:
		return errtag.KindAuthenticationFailed, true
	case http.StatusForbidden:
		return errtag.KindForbidden, true
	case http.StatusTooManyRequests:
		return errtag.KindRateLimitExceeded, true
	case http.StatusBadGateway:
		return errtag.KindBadGateway, true
	case http.StatusGatewayTimeout:
		return errtag.KindGatewayTimeout, true
	case http.StatusRequestTimeout:
		return errtag.KindRequestTimeout, true
	case http.StatusServiceUnavailable:
		return errtag.KindServiceUnavailable, true
	}
	if status >= 500 {
		return errtag.KindServiceUnavailable, true
	}
	return "", false
}
