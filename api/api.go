package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/ragchat/api/conversations"
)

// Server is the API server for chatting and managing documents.
type Server struct {
	config  Config
	service *conversations.Service
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server. The engine and store are injected so
// they can be shared with the MCP server and startup recovery.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	service, err := conversations.NewService(config.Engine, config.Store, config.Ingester)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.ChatTimeout <= 0 {
		config.ChatTimeout = defaultChatTimeout
	}
	if config.MaxUploadMiB <= 0 {
		config.MaxUploadMiB = defaultMaxUploadMiB
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxUploadMiB << 20,
	})

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/conversations", s.handleListThreads)
	v1.Get("/conversations/:thread", s.handleGetThread)
	v1.Get("/conversations/:thread/checkpoints", s.handleCheckpoints)
	v1.Post("/conversations/:thread/chat", s.handleChat)
	v1.Post("/conversations/:thread/resume", s.handleResume)

	if config.Ingester != nil {
		v1.Get("/files", s.handleListFiles)
		v1.Post("/files", s.handleUploadFile)
		v1.Delete("/files/:name", s.handleDeleteFile)
	}

	if config.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))
	}
	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
