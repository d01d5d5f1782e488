// Package api provides the HTTP API for chatting with the workflow engine and
// managing uploaded documents.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

const (
	defaultChatTimeout  = 2 * time.Minute
	defaultMaxUploadMiB = 32
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	Engine *workflow.Engine
	Store  checkpoint.Store

	// Ingester backs the /v1/files endpoints and resolves chat file names.
	// The file endpoints are not mounted without it.
	Ingester *ingest.Ingester

	// Gatherer is served on /metrics when set.
	Gatherer prometheus.Gatherer

	// MCPHandler is mounted on /mcp when set.
	MCPHandler http.Handler

	// ChatTimeout bounds a single chat turn (defaults to 2 minutes).
	ChatTimeout time.Duration

	// MaxUploadMiB is the request body limit (defaults to 32).
	MaxUploadMiB int
}
