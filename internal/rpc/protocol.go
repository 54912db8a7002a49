// Package rpc implements the JSON-RPC 2.0 query endpoint served over HTTP.
package rpc

import "fmt"

// JSON-RPC 2.0 method names.
const (
	MethodQuery  = "query"
	MethodStatus = "status"
	MethodPing   = "ping"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes.
const (
	// ErrCodeServiceUnavailable indicates artifacts are missing, still
	// loading, or failed to load.
	ErrCodeServiceUnavailable = -32010

	// ErrCodeTimeout indicates the query embedding timed out.
	ErrCodeTimeout = -32003
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      any    `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id any, result any) Response {
	return Response{JSONRPC: "2.0", Result: result, ID: id}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id any, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

// QueryParams are the parameters for the query method.
type QueryParams struct {
	// Query is the text to search for (required).
	Query string `json:"query"`

	// K is the number of chunks to return (default: 5).
	K int `json:"k,omitempty"`
}

// Validate checks that required fields are present.
func (p *QueryParams) Validate() error {
	if p.Query == "" {
		return fmt.Errorf("query is required")
	}
	if p.K < 0 {
		return fmt.Errorf("k must not be negative")
	}
	return nil
}

// QueryResult is one retrieved chunk. The query method's result is the
// plain array of these, nearest first.
type QueryResult struct {
	ChunkID  uint64  `json:"chunk_id"`
	Text     string  `json:"text"`
	Distance float32 `json:"distance"`
	Rank     int     `json:"rank"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
