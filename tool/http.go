package tool

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Default limits for the HTTP request tool.
const (
	defaultHTTPMaxResponseBytes = 1 << 20 // 1 MiB
	defaultHTTPTimeout          = 30 * time.Second
)

// HTTPRequestOptions configure the built-in HTTP tool.
type HTTPRequestOptions struct {
	// Client overrides the shared pooled client.
	Client *http.Client
	// MaxResponseBytes caps how much of the response body is returned to the
	// model. Defaults to 1 MiB.
	MaxResponseBytes int64
}

// HTTPRequest is a built-in tool fetching a URL with {url, method}. Method
// defaults to GET. Responses are truncated at MaxResponseBytes so a large
// page cannot blow up the conversation.
type HTTPRequest struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPRequest creates the HTTP tool with a connection-pooled client tuned
// for repeated calls against few hosts.
func NewHTTPRequest(optFns ...func(o *HTTPRequestOptions)) *HTTPRequest {
	opts := HTTPRequestOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{
			Timeout: defaultHTTPTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     120 * time.Second,
			},
		}
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultHTTPMaxResponseBytes
	}
	return &HTTPRequest{client: opts.Client, maxBytes: opts.MaxResponseBytes}
}

// Name implements Tool.
func (t *HTTPRequest) Name() string { return "http_request" }

// Description implements Tool.
func (t *HTTPRequest) Description() string { return "Make HTTP requests" }

// Parameters implements Tool.
func (t *HTTPRequest) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to request",
			},
			"method": map[string]interface{}{
				"type":        "string",
				"description": "HTTP method (default GET)",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "HEAD"},
			},
		},
		"required": []string{"url"},
	}
}

// Call implements Tool.
func (t *HTTPRequest) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url, _ := args["url"].(string)
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return map[string]interface{}{
		"status": resp.StatusCode,
		"body":   string(body),
	}, nil
}
