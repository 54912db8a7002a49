// Package mcp implements the Model Context Protocol server exposing the
// retrieval engine to AI clients.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/index"
	"github.com/Aman-CERP/ragmcp/internal/service"
)

// MCP error codes. Standard JSON-RPC codes plus a few in the
// implementation-defined range.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	// ErrCodeTimeout indicates the request or its embedding timed out.
	ErrCodeTimeout = -32003

	// ErrCodeServiceUnavailable indicates artifacts are missing, loading,
	// or failed to load.
	ErrCodeServiceUnavailable = -32010
)

// MCPError is a protocol error with a code and a client-facing message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts service and storage errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var dimErr *index.DimensionError
	var incErr *artifact.InconsistencyError

	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		return NewInvalidParamsError("Query must be a non-empty string.")
	case errors.Is(err, service.ErrNotReady):
		return &MCPError{
			Code:    ErrCodeServiceUnavailable,
			Message: "Artifacts are still loading. Retry shortly.",
		}
	case errors.Is(err, artifact.ErrMissing):
		return &MCPError{
			Code:    ErrCodeServiceUnavailable,
			Message: "No index found. Run 'ragmcp index' first.",
		}
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, service.ErrClosed):
		return &MCPError{
			Code:    ErrCodeServiceUnavailable,
			Message: "Retrieval service unavailable: " + err.Error(),
		}
	case errors.Is(err, embed.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.As(err, &dimErr), errors.As(err, &incErr):
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Index is inconsistent with the configured embedder. Rebuild with 'ragmcp index'.",
		}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}
