package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// MCPServerConfig describes one stdio MCP server call_mcp can reach:
// Command/Args/Env for launching it. Stdio transport only; sse and
// streamable-http servers are out of scope.
type MCPServerConfig struct {
	Command string
	Args    []string
	Env     map[string]string
}

// MCPExecutor implements call_mcp: lazily start and initialize one mcp-go
// client per configured server name, reusing the connection across calls.
type MCPExecutor struct {
	Servers map[string]MCPServerConfig

	mu      sync.Mutex
	clients map[string]*client.Client
}

func NewMCPExecutor(servers map[string]MCPServerConfig) *MCPExecutor {
	return &MCPExecutor{Servers: servers, clients: make(map[string]*client.Client)}
}

func (e *MCPExecutor) CallMCP(ctx context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	server, _ := params["server"].(string)
	toolName, _ := params["tool"].(string)
	if server == "" || toolName == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "call_mcp requires server and tool")
	}
	args, _ := params["args"].(map[string]any)

	mcpClient, err := e.connect(ctx, server)
	if err != nil {
		return dispatch.Result{}, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return dispatch.Result{}, errtag.Wrap(errtag.KindConnectionFailed, "MCP call failed", err)
	}

	return dispatch.Result{Data: map[string]any{
		"server": server,
		"tool":   toolName,
		"result": parseToolResult(resp),
	}}, nil
}

func (e *MCPExecutor) connect(ctx context.Context, server string) (*client.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[server]; ok {
		return c, nil
	}

	cfg, ok := e.Servers[server]
	if !ok {
		return nil, errtag.New(errtag.KindNotFound, fmt.Sprintf("unknown MCP server %q", server))
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, errtag.Wrap(errtag.KindConnectionFailed, "failed to create MCP client", err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return nil, errtag.Wrap(errtag.KindConnectionFailed, "failed to start MCP client", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "quoracle", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, errtag.Wrap(errtag.KindInitializationTimeout, "failed to initialize MCP session", err)
	}

	e.clients[server] = mcpClient
	return mcpClient, nil
}

func parseToolResult(resp *mcp.CallToolResult) map[string]any {
	out := map[string]any{"is_error": resp.IsError}
	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	out["content"] = texts
	return out
}

// Close shuts down every connected MCP client, called when the owning
// agent/environment tears down.
func (e *MCPExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.clients {
		c.Close()
	}
	e.clients = make(map[string]*client.Client)
}
