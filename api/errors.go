package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/ragchat/pkg/checkpoint"
	"github.com/papercomputeco/ragchat/pkg/ingest"
	"github.com/papercomputeco/ragchat/pkg/llm"
	"github.com/papercomputeco/ragchat/pkg/vector"
	"github.com/papercomputeco/ragchat/pkg/workflow"
)

// errorStatus maps an error to its HTTP status and response body.
func errorStatus(err error) (int, llm.ErrorResponse) {
	var (
		capErr   *workflow.CapabilityError
		scopeErr *workflow.ScopeError
		cpErr    *workflow.CheckpointError
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusGatewayTimeout, llm.ErrorResponse{Error: "request timed out"}
	case errors.As(err, &capErr):
		return fiber.StatusBadGateway, llm.ErrorResponse{
			Error:  capErr.Error(),
			Node:   string(capErr.Node),
			Source: capErr.Source,
		}
	case errors.As(err, &scopeErr), errors.Is(err, workflow.ErrEmptyQuery),
		errors.Is(err, ingest.ErrInvalidName), errors.Is(err, ingest.ErrUnsupportedFormat):
		return fiber.StatusBadRequest, llm.ErrorResponse{Error: err.Error()}
	case errors.Is(err, ingest.ErrFileNotFound):
		return fiber.StatusNotFound, llm.ErrorResponse{Error: "File not found"}
	case checkpoint.IsNotFound(err):
		return fiber.StatusNotFound, llm.ErrorResponse{Error: err.Error()}
	case errors.Is(err, vector.ErrEmbedding):
		return fiber.StatusBadGateway, llm.ErrorResponse{Error: err.Error()}
	case errors.As(err, &cpErr):
		return fiber.StatusInternalServerError, llm.ErrorResponse{Error: cpErr.Error()}
	default:
		return fiber.StatusInternalServerError, llm.ErrorResponse{Error: err.Error()}
	}
}

func (s *Server) writeError(c *fiber.Ctx, err error) error {
	status, body := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(body)
}
