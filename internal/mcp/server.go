package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ragmcp/internal/service"
	"github.com/Aman-CERP/ragmcp/pkg/version"
)

// QueryInput defines the input schema for the query tool.
type QueryInput struct {
	Query string `json:"query" jsonschema:"the text to search the corpus for"`
	K     int    `json:"k,omitempty" jsonschema:"number of chunks to return, default 5"`
}

// QueryOutput defines the output schema for the query tool.
type QueryOutput struct {
	Results []QueryResult `json:"results" jsonschema:"retrieved chunks, nearest first"`
}

// QueryResult is one retrieved chunk.
type QueryResult struct {
	ChunkID  uint64  `json:"chunk_id" jsonschema:"stable id of the chunk"`
	Text     string  `json:"text" jsonschema:"chunk text"`
	Distance float32 `json:"distance" jsonschema:"squared Euclidean distance, smaller is closer"`
	Rank     int     `json:"rank" jsonschema:"0-based position in the result ordering"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Status service.Status `json:"status" jsonschema:"artifact and lifecycle state of the retrieval service"`
}

// Server bridges AI clients to the retrieval service over MCP.
type Server struct {
	mcp     *mcp.Server
	service *service.Retrieval
	logger  *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(svc *service.Retrieval, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("retrieval service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		service: svc,
		logger:  logger.With(slog.String("component", "mcp")),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "ragmcp",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query",
		Description: "Retrieve the corpus chunks most similar to a query. Returns up to k chunks ordered by ascending distance.",
	}, s.mcpQueryHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check whether the retrieval index is loaded and which model built it. Use when queries report the service unavailable.",
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 2))
}

// mcpQueryHandler is the MCP SDK handler for the query tool.
func (s *Server) mcpQueryHandler(ctx context.Context, req *mcp.CallToolRequest, input QueryInput) (
	*mcp.CallToolResult,
	QueryOutput,
	error,
) {
	if input.Query == "" {
		return nil, QueryOutput{}, NewInvalidParamsError("query parameter is required")
	}
	if input.K < 0 {
		return nil, QueryOutput{}, NewInvalidParamsError("k must not be negative")
	}

	results, err := s.service.Query(ctx, input.Query, input.K)
	if err != nil {
		s.logger.Warn("query failed", slog.String("error", err.Error()))
		return nil, QueryOutput{}, MapError(err)
	}

	out := QueryOutput{Results: make([]QueryResult, len(results))}
	for i, r := range results {
		out.Results[i] = QueryResult{
			ChunkID:  r.ChunkID,
			Text:     r.Text,
			Distance: r.Distance,
			Rank:     r.Rank,
		}
	}
	return nil, out, nil
}

// mcpIndexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) mcpIndexStatusHandler(ctx context.Context, req *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	return nil, IndexStatusOutput{Status: s.service.Status()}, nil
}

// Run serves the given transport until the context is canceled.
func (s *Server) Run(ctx context.Context, transport string) error {
	switch transport {
	case "stdio", "":
		s.logger.Info("MCP server starting", slog.String("transport", "stdio"))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
