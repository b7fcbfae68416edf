package tool

import (
	"context"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentkit/logging"
)

type mockMCPClient struct {
	tools    []mcp.Tool
	listErr  error
	callFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	closed   bool
}

func (m *mockMCPClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListToolsResult{Tools: m.tools}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.callFunc != nil {
		return m.callFunc(ctx, req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("called %s", req.Params.Name))},
	}, nil
}

func (m *mockMCPClient) Close() error {
	m.closed = true
	return nil
}

// -------------------- MCP Toolset Tests --------------------

func TestMCPToolset_Discovery(t *testing.T) {
	ts := &MCPToolset{logger: logging.NoOpLogger{}}
	ts.conns = []mcpConn{
		{name: "files", client: &mockMCPClient{tools: []mcp.Tool{
			{Name: "read_file", Description: "Read a file"},
			{Name: "write_file", Description: "Write a file"},
		}}},
		{name: "db", client: &mockMCPClient{tools: []mcp.Tool{
			{Name: "query", Description: "Run a query"},
		}}},
	}

	require.NoError(t, ts.discover(context.Background()))

	tools := ts.Tools()
	require.Len(t, tools, 3)

	names := make(map[string]bool, len(tools))
	for _, tl := range tools {
		names[tl.Name()] = true
	}
	assert.True(t, names["mcp_files_read_file"])
	assert.True(t, names["mcp_files_write_file"])
	assert.True(t, names["mcp_db_query"])
}

func TestMCPToolset_DiscoveryToleratesPartialFailure(t *testing.T) {
	healthy := &mockMCPClient{tools: []mcp.Tool{{Name: "search"}}}
	broken := &mockMCPClient{listErr: fmt.Errorf("connection reset")}

	ts := &MCPToolset{logger: logging.NoOpLogger{}}
	ts.conns = []mcpConn{
		{name: "healthy", client: healthy},
		{name: "broken", client: broken},
	}

	require.NoError(t, ts.discover(context.Background()))
	require.Len(t, ts.Tools(), 1)
	assert.Equal(t, "mcp_healthy_search", ts.Tools()[0].Name())
}

func TestMCPToolset_DiscoveryFailsWhenAllServersFail(t *testing.T) {
	ts := &MCPToolset{logger: logging.NoOpLogger{}}
	ts.conns = []mcpConn{
		{name: "a", client: &mockMCPClient{listErr: fmt.Errorf("down")}},
		{name: "b", client: &mockMCPClient{listErr: fmt.Errorf("also down")}},
	}

	err := ts.discover(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all mcp servers failed")
}

func TestMCPToolset_Close(t *testing.T) {
	c1 := &mockMCPClient{}
	c2 := &mockMCPClient{}
	ts := &MCPToolset{logger: logging.NoOpLogger{}}
	ts.conns = []mcpConn{{name: "a", client: c1}, {name: "b", client: c2}}

	ts.Close()
	assert.True(t, c1.closed)
	assert.True(t, c2.closed)
}

// -------------------- MCP Tool Adapter Tests --------------------

func TestMCPTool_Parameters(t *testing.T) {
	remote := mcp.Tool{
		Name: "search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{"type": "string"},
			},
			Required: []string{"query"},
		},
	}

	adapter := newMCPTool("docs", &mockMCPClient{}, remote, logging.NoOpLogger{})
	assert.Equal(t, "mcp_docs_search", adapter.Name())

	params := adapter.Parameters()
	assert.Equal(t, "object", params["type"])
	props, ok := params["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "query")
}

func TestMCPTool_Call(t *testing.T) {
	client := &mockMCPClient{
		callFunc: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			assert.Equal(t, "search", req.Params.Name)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent("first"), mcp.NewTextContent("second")},
			}, nil
		},
	}

	adapter := newMCPTool("docs", client, mcp.Tool{Name: "search"}, logging.NoOpLogger{})
	result, err := adapter.Call(context.Background(), map[string]interface{}{"query": "go"})
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", result)
}

func TestMCPTool_CallRemoteError(t *testing.T) {
	client := &mockMCPClient{
		callFunc: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{mcp.NewTextContent("file not found")},
			}, nil
		},
	}

	adapter := newMCPTool("files", client, mcp.Tool{Name: "read_file"}, logging.NoOpLogger{})
	_, err := adapter.Call(context.Background(), map[string]interface{}{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Equal(t, "file not found", toolErr.Message)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "my_server", sanitizeName("my-server"))
	assert.Equal(t, "a_b_c", sanitizeName("a.b/c"))
	assert.Equal(t, "plain_123", sanitizeName("plain_123"))
}
