package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/deckshare/localsend-bridge/internal/logging"
)

// ErrBackendUnavailable is reported when a request is proxied while the
// engine is not running.
var ErrBackendUnavailable = errors.New("backend not running")

// backendUnavailableMessage is the error text the UI matches on.
const backendUnavailableMessage = "Backend not running"

// Backend is the supervised engine as seen by the proxy.
type Backend interface {
	Running() bool
	BaseURL() string
}

// Result is what the UI receives for a proxied call: the decoded body
// (JSON value or text) and the HTTP status.
type Result struct {
	Data   interface{} `json:"data"`
	Status int         `json:"status"`
}

// errorResult builds the {"error": ...} payload used for local failures.
func errorResult(status int, msg string) Result {
	return Result{Data: map[string]interface{}{"error": msg}, Status: status}
}

// Proxy forwards UI requests to the engine with retry and backoff.
type Proxy struct {
	client  *retryablehttp.Client
	backend Backend
	log     *logging.Logger
}

// NewProxy creates a proxy sending requests through rt. Pass nil to use
// NewEngineTransport.
func NewProxy(backend Backend, rt nethttp.RoundTripper, policy RetryPolicy, log *logging.Logger) *Proxy {
	if rt == nil {
		rt = NewEngineTransport()
	}
	return &Proxy{
		client:  NewRetryClient(rt, policy, log),
		backend: backend,
		log:     log.Component("proxy"),
	}
}

// Get proxies a GET.
func (p *Proxy) Get(ctx context.Context, path string) Result {
	return p.Do(ctx, nethttp.MethodGet, path, nil, "")
}

// Post proxies a POST. A raw body takes precedence over jsonData and is
// sent as application/octet-stream; jsonData is sent as application/json.
// With neither, the POST has no body.
func (p *Proxy) Post(ctx context.Context, path string, jsonData interface{}, body []byte) Result {
	switch {
	case body != nil:
		return p.Do(ctx, nethttp.MethodPost, path, body, "application/octet-stream")
	case jsonData != nil:
		data, err := json.Marshal(jsonData)
		if err != nil {
			return errorResult(nethttp.StatusInternalServerError, fmt.Sprintf("failed to encode request: %v", err))
		}
		return p.Do(ctx, nethttp.MethodPost, path, data, "application/json")
	default:
		return p.Do(ctx, nethttp.MethodPost, path, nil, "")
	}
}

// Do sends method+path with an optional body. It never returns an error:
// failures are encoded in the Result.
func (p *Proxy) Do(ctx context.Context, method, path string, body []byte, contentType string) Result {
	if !p.backend.Running() {
		p.log.Debug().Str("method", method).Str("path", path).Err(ErrBackendUnavailable).Msg("proxy call rejected")
		return errorResult(nethttp.StatusServiceUnavailable, backendUnavailableMessage)
	}

	url := strings.TrimSuffix(p.backend.BaseURL(), "/") + "/" + strings.TrimPrefix(path, "/")

	var raw interface{}
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, raw)
	if err != nil {
		p.log.Error().Err(err).Str("url", url).Msg("proxy request failed")
		return errorResult(nethttp.StatusInternalServerError, err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error().Err(err).Str("method", method).Str("path", path).Msg("proxy request failed")
		return errorResult(nethttp.StatusInternalServerError, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Error().Err(err).Str("path", path).Msg("failed to read proxy response")
		return errorResult(nethttp.StatusInternalServerError, err.Error())
	}

	return Result{Data: decodeBody(data, resp.Header.Get("Content-Type")), Status: resp.StatusCode}
}

// decodeBody returns a JSON value for JSON responses and text otherwise.
// Invalid JSON falls back to text.
func decodeBody(data []byte, contentType string) interface{} {
	if strings.Contains(contentType, "application/json") {
		var v interface{}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return strings.ToValidUTF8(string(data), "�")
}
