package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/executor"
)

// MCPServer exposes the agent core as Model Context Protocol tools. It owns
// one interactive agent: run_task drives full goals through it, the
// browser_* tools poke its browser directly between runs, and memory_search
// reads its persistent tiers.
type MCPServer struct {
	ag  *agent.Agent
	mcp *mcpserver.MCPServer
}

// NewMCPServer wires the tool set around the given agent.
func NewMCPServer(ag *agent.Agent, version string) *MCPServer {
	s := &MCPServer{ag: ag}

	srv := mcpserver.NewMCPServer("argus", version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Browser automation agent. Use run_task for full goals; "+
			"the browser_* tools operate the shared browser directly between runs."),
	)

	srv.AddTool(mcp.NewTool("run_task",
		mcp.WithDescription("Run a natural-language goal through the full snapshot-plan-act loop and return the result."),
		mcp.WithString("goal", mcp.Required(), mcp.Description("What the agent should accomplish.")),
	), s.handleRunTask)

	srv.AddTool(mcp.NewTool("browser_snapshot",
		mcp.WithDescription("Render the current page as a numbered list of interactive elements."),
		mcp.WithBoolean("force", mcp.Description("Bypass the snapshot cache."), mcp.DefaultBool(false)),
	), s.handleSnapshot)

	srv.AddTool(mcp.NewTool("browser_navigate",
		mcp.WithDescription("Navigate the browser to a URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Absolute http(s) URL.")),
	), s.handleNavigate)

	srv.AddTool(mcp.NewTool("browser_click",
		mcp.WithDescription("Click an element by its snapshot ref, e.g. e3."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Element ref from the latest snapshot.")),
	), s.handleClick)

	srv.AddTool(mcp.NewTool("browser_type",
		mcp.WithDescription("Type text into an element by its snapshot ref."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Element ref from the latest snapshot.")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to type.")),
	), s.handleType)

	srv.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Search episodes, skills and semantic knowledge from past runs."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query.")),
		mcp.WithNumber("limit", mcp.Description("Maximum results."), mcp.DefaultNumber(5)),
	), s.handleMemorySearch)

	s.mcp = srv
	return s
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	return mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// ServeHTTP serves MCP over the streamable HTTP transport on addr until ctx
// is cancelled.
func (s *MCPServer) ServeHTTP(ctx context.Context, addr string) error {
	srv := mcpserver.NewStreamableHTTPServer(s.mcp)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *MCPServer) handleRunTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, err := req.RequireString("goal")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.ag.Run(ctx, goal)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonToolResult(res)
}

func (s *MCPServer) handleSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireIdle(); res != nil {
		return res, nil
	}

	force := req.GetBool("force", false)
	res, err := s.ag.Snapshots().Get(ctx, force, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Snapshot.Render()), nil
}

func (s *MCPServer) handleNavigate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyAction(ctx, executor.ActionNavigate, map[string]interface{}{"url": url})
}

func (s *MCPServer) handleClick(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyAction(ctx, executor.ActionClick, map[string]interface{}{"ref": ref})
}

func (s *MCPServer) handleType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.applyAction(ctx, executor.ActionType, map[string]interface{}{"ref": ref, "text": text})
}

func (s *MCPServer) handleMemorySearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 5)

	results := s.ag.Memory().Search(ctx, query, limit)
	if len(results) == 0 {
		return mcp.NewToolResultText("no matching memory entries"), nil
	}
	return jsonToolResult(results)
}

// applyAction executes one browser action outside a run. Refs stay bound to
// the agent's latest snapshot, so direct pokes are refused while a run is
// in flight.
func (s *MCPServer) applyAction(ctx context.Context, action executor.Action, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if res := s.requireIdle(); res != nil {
		return res, nil
	}

	res := s.ag.Executor().Apply(ctx, action, args)
	if !res.Success {
		return mcp.NewToolResultError(res.Observation), nil
	}
	return mcp.NewToolResultText(res.Observation), nil
}

func (s *MCPServer) requireIdle() *mcp.CallToolResult {
	if s.ag.Running() {
		return mcp.NewToolResultError("a run is active; wait for it to finish")
	}
	return nil
}

func jsonToolResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
