package api

import (
	"context"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/ragchat/api/conversations"
	"github.com/papercomputeco/ragchat/pkg/llm"
)

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	Query           string `json:"query"`
	File            string `json:"file"`
	EnableWebSearch bool   `json:"enable_web_search"`
}

// UploadResponse is returned after a document was stored and indexed.
type UploadResponse struct {
	Message     string   `json:"message"`
	FileName    string   `json:"file_name"`
	DocumentIDs []string `json:"document_ids"`
}

// DeleteResponse is returned after a document was removed.
type DeleteResponse struct {
	Message  string `json:"message"`
	FileName string `json:"file_name"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat runs one turn on the thread in the path.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.ChatTimeout)
	defer cancel()

	out, err := s.service.Chat(ctx, conversations.ChatInput{
		ThreadID:        c.Params("thread"),
		Query:           req.Query,
		File:            req.File,
		EnableWebSearch: req.EnableWebSearch,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(out)
}

// handleResume finishes an interrupted turn.
func (s *Server) handleResume(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.config.ChatTimeout)
	defer cancel()

	out, err := s.service.Resume(ctx, c.Params("thread"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(out)
}

// handleListThreads returns all thread IDs.
func (s *Server) handleListThreads(c *fiber.Ctx) error {
	threads, err := s.service.ListThreads(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"threads": threads})
}

// handleGetThread returns the messages of a thread.
func (s *Server) handleGetThread(c *fiber.Ctx) error {
	thread, err := s.service.GetThread(c.UserContext(), c.Params("thread"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(thread)
}

// handleCheckpoints returns the checkpoint lineage of a thread.
func (s *Server) handleCheckpoints(c *fiber.Ctx) error {
	id := c.Params("thread")
	lineage, err := s.service.Checkpoints(c.UserContext(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"thread_id": id, "checkpoints": lineage})
}

// handleUploadFile stores a multipart upload and indexes it.
func (s *Server) handleUploadFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "multipart field \"file\" is required"})
	}

	name := filepath.Base(fh.Filename)
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "failed to read upload"})
	}
	defer f.Close()

	path, err := s.config.Ingester.Save(name, f)
	if err != nil {
		return s.writeError(c, err)
	}

	ids, err := s.config.Ingester.IngestFile(c.UserContext(), path)
	if err != nil {
		s.logger.Error("failed to ingest upload", "file", name, "error", err)
		return s.writeError(c, err)
	}

	return c.JSON(UploadResponse{
		Message:     "File uploaded successfully",
		FileName:    name,
		DocumentIDs: ids,
	})
}

// handleDeleteFile removes an uploaded document and its chunks.
func (s *Server) handleDeleteFile(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := s.config.Ingester.DeleteFile(c.UserContext(), name); err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(DeleteResponse{
		Message:  "File deleted successfully",
		FileName: name,
	})
}

// handleListFiles lists the uploaded documents.
func (s *Server) handleListFiles(c *fiber.Ctx) error {
	files, err := s.config.Ingester.ListFiles()
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"files": files})
}
