package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/agent-league/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Dosada05/agent-league/gateway"

// Caller invokes a named tool on a remote agent and decodes the result into out.
type Caller interface {
	Call(ctx context.Context, endpoint, tool string, args any, out any) error
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, endpoint, tool string, args any, out any) error

func (f CallerFunc) Call(ctx context.Context, endpoint, tool string, args any, out any) error {
	return f(ctx, endpoint, tool, args, out)
}

// Client speaks JSON-RPC tool calls over streamable HTTP. Every call opens a
// short-lived session, so it holds no per-endpoint state.
type Client struct {
	impl       *mcp.Implementation
	httpClient *http.Client
	timeout    time.Duration
	tracer     trace.Tracer
	logger     *slog.Logger
}

func NewClient(name, version string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		impl:       &mcp.Implementation{Name: name, Version: version},
		httpClient: &http.Client{},
		timeout:    timeout,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
	}
}

func (c *Client) Call(ctx context.Context, endpoint, tool string, args any, out any) error {
	ctx, span := c.tracer.Start(ctx, "gateway.call "+tool,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.method", tool),
			attribute.String("server.address", endpoint),
		),
	)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.call(ctx, endpoint, tool, args, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("remote call failed",
			slog.String("tool", tool),
			slog.String("endpoint", endpoint),
			slog.Any("error", err),
		)
		return &CallError{Endpoint: endpoint, Tool: tool, Err: err}
	}
	return nil
}

func (c *Client) call(ctx context.Context, endpoint, tool string, args any, out any) error {
	client := mcp.NewClient(c.impl, nil)
	transport := &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: c.httpClient}

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return classify(ctx, err, ErrConnection)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return classify(ctx, err, nil)
	}
	if res.IsError {
		return toolErrorFromResult(res)
	}
	if out == nil {
		return nil
	}
	if err := decodeResult(res, out); err != nil {
		return &ToolError{Message: fmt.Sprintf("malformed %s response: %v", tool, err)}
	}
	return nil
}

func resultPayload(res *mcp.CallToolResult) ([]byte, error) {
	if res.StructuredContent != nil {
		return json.Marshal(res.StructuredContent)
	}
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			return []byte(text.Text), nil
		}
	}
	return nil, fmt.Errorf("result has no structured or text content")
}

func decodeResult(res *mcp.CallToolResult, out any) error {
	payload, err := resultPayload(res)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

func toolErrorFromResult(res *mcp.CallToolResult) error {
	payload, err := resultPayload(res)
	if err != nil {
		return &ToolError{Message: "remote tool failed without details"}
	}
	var le models.LeagueError
	if json.Unmarshal(payload, &le) == nil && le.ErrorCode != "" {
		return &ToolError{Code: le.ErrorCode, Message: le.ErrorDescription, Payload: &le}
	}
	return &ToolError{Message: string(payload)}
}
