// Package mcp provides an MCP (Model Context Protocol) server exposing the
// chat workflow and its threads as tools.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/utils"
)

type Config struct {
	// Service runs chat turns and reads threads.
	Service *conversations.Service

	// Ingester lists uploaded documents (optional, enables list_documents).
	Ingester *ingest.Ingester

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the chat and thread tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragchat",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	s.mcpServer = mcpServer
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	if c.Noop {
		// no tools when MCP capabilities are disabled
		return s, nil
	}

	if c.Service == nil {
		return nil, errors.New("conversation service is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        chatToolName,
		Description: chatDescription,
	}, s.handleChat)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listThreadsToolName,
		Description: listThreadsDescription,
	}, s.handleListThreads)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        getThreadToolName,
		Description: getThreadDescription,
	}, s.handleGetThread)

	if c.Ingester != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        listDocumentsToolName,
			Description: listDocumentsDescription,
		}, s.handleListDocuments)
	}

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// jsonResult serializes the structured output into a TextContent block as
// well, for clients that ignore structured content.
func jsonResult(out any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool output: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}
