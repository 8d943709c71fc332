package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/Dosada05/agent-league/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToolServer is the inbound side of the gateway: a name -> handler table
// served as JSON-RPC over streamable HTTP.
type ToolServer struct {
	server *mcp.Server
	tracer trace.Tracer
	logger *slog.Logger

	mu    sync.Mutex
	names map[string]struct{}
}

func NewToolServer(name, version string, logger *slog.Logger) *ToolServer {
	return &ToolServer{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil),
		tracer: otel.Tracer(tracerName),
		logger: logger,
		names:  make(map[string]struct{}),
	}
}

// ToolHandler handles one decoded tool call. Returning a *models.LeagueError
// sends it back as a structured protocol error.
type ToolHandler[In any] func(ctx context.Context, in In) (any, error)

// AddTool registers h under name. Names must be unique and non-empty.
func AddTool[In any](s *ToolServer, name, description string, h ToolHandler[In]) error {
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	if h == nil {
		return fmt.Errorf("tool %q: nil handler", name)
	}

	s.mu.Lock()
	if _, dup := s.names[name]; dup {
		s.mu.Unlock()
		return fmt.Errorf("tool %q registered twice", name)
	}
	s.names[name] = struct{}{}
	s.mu.Unlock()

	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			ctx, span := s.tracer.Start(ctx, "tool "+name,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("rpc.method", name)),
			)
			defer span.End()

			out, err := h(ctx, in)
			if err == nil {
				return nil, out, nil
			}

			span.SetStatus(codes.Error, err.Error())
			var le *models.LeagueError
			if errors.As(err, &le) {
				return leagueErrorResult(le), nil, nil
			}
			s.logger.Error("tool handler failed", slog.String("tool", name), slog.Any("error", err))
			return nil, nil, err
		})
	return nil
}

// MustAddTool is AddTool for static registration tables.
func MustAddTool[In any](s *ToolServer, name, description string, h ToolHandler[In]) {
	if err := AddTool(s, name, description, h); err != nil {
		panic(err)
	}
}

func (s *ToolServer) Tools() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *ToolServer) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

func leagueErrorResult(le *models.LeagueError) *mcp.CallToolResult {
	text, err := json.Marshal(le)
	if err != nil {
		text = []byte(le.Error())
	}
	return &mcp.CallToolResult{
		IsError:           true,
		StructuredContent: le,
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}
}
