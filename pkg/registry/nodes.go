package registry

import (
	"net/http"

	"github.com/flowmark/journey/pkg/nodes/condition"
	"github.com/flowmark/journey/pkg/nodes/function"
	"github.com/flowmark/journey/pkg/nodes/httprequest"
)

// RegisterDefaultNodes registers the http, function and condition node factories.
// Function and condition nodes resolve names against this registry.
func (r *Registry) RegisterDefaultNodes(client *http.Client) {
	r.RegisterNode(httprequest.NewHTTPRequestNodeFactory(client))
	r.RegisterNode(function.NewFunctionNodeFactory(r))
	r.RegisterNode(condition.NewConditionNodeFactory(r))
}
