package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/ragchat/api/conversations"
)

var (
	chatToolName    = "chat"
	chatDescription = "Ask a question in a conversation thread. Optionally scope retrieval to an uploaded document and enable web search. Returns the assistant's answer and the thread ID to continue the conversation."

	listThreadsToolName    = "list_threads"
	listThreadsDescription = "List the IDs of all conversation threads, oldest first."

	getThreadToolName    = "get_thread"
	getThreadDescription = "Return the messages of a conversation thread and the node it will run next."

	listDocumentsToolName    = "list_documents"
	listDocumentsDescription = "List the uploaded documents that chat can be scoped to."
)

// ChatInput represents the input arguments for the chat tool.
type ChatInput struct {
	ThreadID        string `json:"thread_id,omitempty" jsonschema:"conversation thread to continue; a new thread is started when empty"`
	Query           string `json:"query" jsonschema:"the question to ask"`
	File            string `json:"file,omitempty" jsonschema:"uploaded document name to retrieve context from"`
	EnableWebSearch bool   `json:"enable_web_search,omitempty" jsonschema:"also search the web for context"`
}

// ThreadInput names a thread.
type ThreadInput struct {
	ThreadID string `json:"thread_id" jsonschema:"the conversation thread ID"`
}

// ListThreadsOutput represents the output of the list_threads tool.
type ListThreadsOutput struct {
	Threads []string `json:"threads"`
	Count   int      `json:"count"`
}

// ListDocumentsOutput represents the output of the list_documents tool.
type ListDocumentsOutput struct {
	Files []string `json:"files"`
	Count int      `json:"count"`
}

func (s *Server) handleChat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, conversations.ChatOutput, error) {
	s.config.Logger.Debug("MCP chat request", "thread_id", input.ThreadID, "file", input.File)

	out, err := s.config.Service.Chat(ctx, conversations.ChatInput{
		ThreadID:        input.ThreadID,
		Query:           input.Query,
		File:            input.File,
		EnableWebSearch: input.EnableWebSearch,
	})
	if err != nil {
		s.config.Logger.Error("MCP chat failed", "thread_id", input.ThreadID, "error", err)
		return errorResult("Chat failed: %v", err), conversations.ChatOutput{}, nil
	}

	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize answer: %v", err), conversations.ChatOutput{}, nil
	}
	return res, *out, nil
}

func (s *Server) handleListThreads(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListThreadsOutput, error) {
	threads, err := s.config.Service.ListThreads(ctx)
	if err != nil {
		s.config.Logger.Error("MCP list threads failed", "error", err)
		return errorResult("Failed to list threads: %v", err), ListThreadsOutput{}, nil
	}

	out := ListThreadsOutput{Threads: threads, Count: len(threads)}
	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize threads: %v", err), ListThreadsOutput{}, nil
	}
	return res, out, nil
}

func (s *Server) handleGetThread(ctx context.Context, _ *mcp.CallToolRequest, input ThreadInput) (*mcp.CallToolResult, conversations.Thread, error) {
	thread, err := s.config.Service.GetThread(ctx, input.ThreadID)
	if err != nil {
		return errorResult("Failed to load thread %s: %v", input.ThreadID, err), conversations.Thread{}, nil
	}

	res, err := jsonResult(thread)
	if err != nil {
		return errorResult("Failed to serialize thread: %v", err), conversations.Thread{}, nil
	}
	return res, *thread, nil
}

func (s *Server) handleListDocuments(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	files, err := s.config.Ingester.ListFiles()
	if err != nil {
		s.config.Logger.Error("MCP list documents failed", "error", err)
		return errorResult("Failed to list documents: %v", err), ListDocumentsOutput{}, nil
	}

	out := ListDocumentsOutput{Files: files, Count: len(files)}
	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Failed to serialize documents: %v", err), ListDocumentsOutput{}, nil
	}
	return res, out, nil
}
