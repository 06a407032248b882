// Package httprequest provides HTTP request node factory for the registry system.
package httprequest

import (
	"context"
	"net/http"

	"github.com/flowmark/journey/pkg/protocol"
)

// HTTPRequestNodeFactory creates HTTPRequestNode instances.
type HTTPRequestNodeFactory struct {
	client *http.Client
}

// NewHTTPRequestNodeFactory creates a new HTTP request node factory. A nil client
// falls back to http.DefaultClient.
func NewHTTPRequestNodeFactory(client *http.Client) protocol.NodeFactory {
	return &HTTPRequestNodeFactory{client: client}
}

// Create creates a new HTTPRequestNode instance.
func (f *HTTPRequestNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewHTTPRequestNode(id, config, f.client)
}

// ID returns the factory ID.
func (f *HTTPRequestNodeFactory) ID() string {
	return "http"
}

// Name returns the factory name.
func (f *HTTPRequestNodeFactory) Name() string {
	return "HTTP Request"
}

// Description returns the factory description.
func (f *HTTPRequestNodeFactory) Description() string {
	return "Performs a single HTTP request and stores the response body under 'response'"
}

// Schema returns the JSON schema for HTTP request node configuration.
func (f *HTTPRequestNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "HTTP URL to request",
				"examples":    []string{"https://api.example.com/ping"},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum": []string{
					"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS",
					"get", "post", "put", "delete", "patch", "head", "options",
				},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "HTTP headers",
			},
			"body": map[string]any{
				"description": "Request body. Non-string values are sent as JSON",
			},
			"timeout": map[string]any{
				"type":        "number",
				"description": "Request timeout in seconds; the client default applies when omitted",
				"minimum":     0,
			},
		},
		"required": []string{"url"},
	}
}
