package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentkit/logging"
)

// mcpCallTimeout is the default per-call timeout for MCP tool execution.
const mcpCallTimeout = 30 * time.Second

// MCPServer describes one Model Context Protocol server to connect to.
type MCPServer struct {
	Name      string            // logical name, becomes part of the tool names
	Transport string            // "stdio" or "http"
	Command   string            // stdio: executable to launch
	Args      []string          // stdio: arguments
	Env       map[string]string // stdio: extra environment
	URL       string            // http: streamable HTTP endpoint
}

// mcpClient abstracts the MCP client surface used here, for testability.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type mcpConn struct {
	name   string
	client mcpClient
}

// MCPToolset connects to MCP servers and exposes each discovered remote tool
// as a registrable Tool named "mcp_<server>_<tool>". Discovery runs
// concurrently across servers. Close the toolset when the tools are no longer
// needed to shut down the server connections.
type MCPToolset struct {
	mu     sync.RWMutex
	conns  []mcpConn
	tools  []Tool
	logger logging.Logger
}

// MCPToolsetOptions configure NewMCPToolset.
type MCPToolsetOptions struct {
	Logger logging.Logger
}

// NewMCPToolset connects to all given servers and discovers their tools. A
// connection failure tears down already-open connections and fails fast;
// discovery tolerates individual server failures as long as at least one
// server answers.
func NewMCPToolset(ctx context.Context, servers []MCPServer, optFns ...func(o *MCPToolsetOptions)) (*MCPToolset, error) {
	opts := MCPToolsetOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	ts := &MCPToolset{logger: logging.OrNoOp(opts.Logger)}

	for _, srv := range servers {
		conn, err := ts.connect(ctx, srv)
		if err != nil {
			ts.Close()
			return nil, fmt.Errorf("mcp server %q: %w", srv.Name, err)
		}
		ts.conns = append(ts.conns, *conn)
	}

	if err := ts.discover(ctx); err != nil {
		ts.Close()
		return nil, fmt.Errorf("discover tools: %w", err)
	}
	return ts, nil
}

func (ts *MCPToolset) connect(ctx context.Context, srv MCPServer) (*mcpConn, error) {
	var c mcpClient

	switch srv.Transport {
	case "stdio":
		stdioClient, err := mcpclient.NewStdioMCPClient(srv.Command, envSlice(srv.Env), srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("create stdio client: %w", err)
		}
		c = stdioClient
	case "http":
		t, err := transport.NewStreamableHTTP(srv.URL)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		httpClient := mcpclient.NewClient(t)
		if err := httpClient.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = httpClient
	default:
		return nil, fmt.Errorf("unsupported transport %q", srv.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentkit", Version: "1.0.0"}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err := ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, fmt.Errorf("initialize: %w", err)
		}
	}

	ts.logger.Info("mcp.server.connected", "server", srv.Name, "transport", srv.Transport)
	return &mcpConn{name: srv.Name, client: c}, nil
}

// discover lists tools from all servers concurrently and collects adapters.
func (ts *MCPToolset) discover(ctx context.Context) error {
	var (
		mu      sync.Mutex
		tools   []Tool
		failed  []string
		success int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range ts.conns {
		g.Go(func() error {
			result, err := conn.client.ListTools(gctx, mcp.ListToolsRequest{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ts.logger.Warn("mcp.discovery.failed", "server", conn.name, "error", err.Error())
				failed = append(failed, fmt.Sprintf("%s: %v", conn.name, err))
				return nil // tolerate individual server failures
			}
			for _, t := range result.Tools {
				tools = append(tools, newMCPTool(conn.name, conn.client, t, ts.logger))
			}
			ts.logger.Info("mcp.discovery.complete", "server", conn.name, "count", len(result.Tools))
			success++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if success == 0 && len(failed) > 0 {
		return fmt.Errorf("all mcp servers failed discovery: %s", strings.Join(failed, "; "))
	}

	ts.mu.Lock()
	ts.tools = tools
	ts.mu.Unlock()
	return nil
}

// Tools returns all discovered tools; register them with a Registry.
func (ts *MCPToolset) Tools() []Tool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]Tool, len(ts.tools))
	copy(out, ts.tools)
	return out
}

// Close shuts down all server connections.
func (ts *MCPToolset) Close() {
	for _, conn := range ts.conns {
		if err := conn.client.Close(); err != nil {
			ts.logger.Warn("mcp.server.close_error", "server", conn.name, "error", err.Error())
		}
	}
}

// mcpTool wraps a single remote MCP tool as a Tool.
type mcpTool struct {
	serverName string
	client     mcpClient
	remote     mcp.Tool
	fullName   string
	logger     logging.Logger
}

func newMCPTool(serverName string, client mcpClient, t mcp.Tool, logger logging.Logger) *mcpTool {
	return &mcpTool{
		serverName: serverName,
		client:     client,
		remote:     t,
		fullName:   fmt.Sprintf("mcp_%s_%s", sanitizeName(serverName), sanitizeName(t.Name)),
		logger:     logger,
	}
}

// Name implements Tool.
func (a *mcpTool) Name() string { return a.fullName }

// Description implements Tool.
func (a *mcpTool) Description() string {
	if a.remote.Description != "" {
		return a.remote.Description
	}
	return fmt.Sprintf("MCP tool %q from server %q", a.remote.Name, a.serverName)
}

// Parameters implements Tool, converting the remote input schema.
func (a *mcpTool) Parameters() map[string]interface{} {
	schema := map[string]interface{}{"type": "object"}
	data, err := json.Marshal(a.remote.InputSchema)
	if err != nil {
		return schema
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed) == 0 {
		return schema
	}
	if _, ok := parsed["type"]; !ok {
		parsed["type"] = "object"
	}
	return parsed
}

// Call implements Tool, forwarding to the remote server.
func (a *mcpTool) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = a.remote.Name
	callReq.Params.Arguments = args

	callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	a.logger.Debug("mcp.tool.call", "server", a.serverName, "tool", a.remote.Name)

	result, err := a.client.CallTool(callCtx, callReq)
	if err != nil {
		return nil, fmt.Errorf("mcp call failed: %w", err)
	}
	content := extractMCPContent(result)
	if result.IsError {
		return nil, NewToolError(a.fullName, content, CodeExecutionError)
	}
	return content, nil
}

// extractMCPContent flattens MCP result content into text.
func extractMCPContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// sanitizeName maps arbitrary server/tool names into [A-Za-z0-9_].
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// envSlice converts a map of env vars to KEY=VALUE form.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}
