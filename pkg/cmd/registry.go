package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flowmark/journey/pkg/registry"
)

// NewRegistry registers the built-in node types, using a client with the given
// timeout for http nodes, plus any node plugins found in pluginsPath. Plugin types
// that collide with a built-in are skipped.
func NewRegistry(log *slog.Logger, pluginsPath string, httpTimeout time.Duration) *registry.Registry {
	reg := registry.NewRegistry(log)
	reg.RegisterDefaultNodes(&http.Client{Timeout: httpTimeout})

	if pluginsPath == "" {
		return reg
	}

	plugins, err := reg.LoadNodePlugins(pluginsPath)
	if err != nil {
		log.Warn("Failed to load node plugins", "path", pluginsPath, "error", err)

		return reg
	}

	for _, plugin := range plugins {
		if err := reg.RegisterPluginNode(plugin); err != nil {
			log.Warn("Skipping node plugin", "node_type", plugin.ID(), "error", err)
		}
	}

	return reg
}
