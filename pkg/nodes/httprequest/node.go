// Package httprequest provides the HTTP request node for workflow graph execution.
package httprequest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// OutputKey is the context key the response body is stored under.
const OutputKey = "response"

// HTTPRequestNode issues a single HTTP request.
type HTTPRequestNode struct {
	id     string
	client *http.Client
	config HTTPRequestConfig
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
	Timeout time.Duration     `json:"timeout"`
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any, client *http.Client) (*HTTPRequestNode, error) {
	httpConfig := HTTPRequestConfig{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
	}

	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	httpConfig.URL = url

	if method, ok := config["method"].(string); ok && method != "" {
		httpConfig.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			httpConfig.Headers[k] = fmt.Sprint(v)
		}
	}

	if body, ok := config["body"]; ok {
		httpConfig.Body = body
	}

	switch timeout := config["timeout"].(type) {
	case float64:
		httpConfig.Timeout = time.Duration(timeout * float64(time.Second))
	case int:
		httpConfig.Timeout = time.Duration(timeout) * time.Second
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPRequestNode{
		id:     id,
		client: client,
		config: httpConfig,
	}, nil
}

// ID returns the node ID.
func (n *HTTPRequestNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *HTTPRequestNode) Type() string {
	return "http"
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Execute performs the request and returns the response body under "response".
func (n *HTTPRequestNode) Execute(ctx context.Context, _ map[string]any) (map[string]any, error) {
	if n.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	reqBody, err := n.encodeBody()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, n.config.URL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range n.config.Headers {
		req.Header.Set(key, value)
	}

	if reqBody != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	return map[string]any{OutputKey: decodeBody(respBody)}, nil
}

func (n *HTTPRequestNode) encodeBody() (io.Reader, error) {
	switch body := n.config.Body.(type) {
	case nil:
		return nil, nil
	case string:
		if body == "" {
			return nil, nil
		}

		return strings.NewReader(body), nil
	default:
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		return bytes.NewReader(payload), nil
	}
}

// decodeBody returns the JSON value of body when it parses, the raw text otherwise.
func decodeBody(body []byte) any {
	if len(body) == 0 {
		return ""
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}

	return string(body)
}
