package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/agent"
	"github.com/kadirpekel/argus/pkg/browser"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/llms"
	"github.com/kadirpekel/argus/pkg/memory"
	"github.com/kadirpekel/argus/pkg/testutils"
)

func newMCPServer(t *testing.T, llm llms.LLMClient) (*MCPServer, *testutils.MockDriver) {
	t.Helper()
	driver := testutils.NewMockDriver()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Executor.RetryBaseDelay = time.Millisecond

	ag, err := agent.New(driver, llm, agent.WithConfig(cfg))
	require.NoError(t, err)
	return NewMCPServer(ag, "test"), driver
}

func callReq(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestMCP_RunTask(t *testing.T) {
	s, _ := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleRunTask(context.Background(), callReq("run_task", map[string]interface{}{
		"goal": "check the homepage",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var result agent.Result
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &result))
	assert.True(t, result.Success)
	assert.Equal(t, agent.ReasonDone, result.Reason)
	assert.Equal(t, "check the homepage", result.Goal)
	assert.Equal(t, 1, result.Steps)
}

func TestMCP_RunTaskRequiresGoal(t *testing.T) {
	s, _ := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleRunTask(context.Background(), callReq("run_task", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "goal")
}

func TestMCP_Snapshot(t *testing.T) {
	s, _ := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleSnapshot(context.Background(), callReq("browser_snapshot", map[string]interface{}{}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	text := textOf(t, res)
	assert.Contains(t, text, `[e1] link "More information"`)
	assert.Contains(t, text, `[e2] button "Submit"`)
}

func TestMCP_Navigate(t *testing.T) {
	s, driver := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleNavigate(context.Background(), callReq("browser_navigate", map[string]interface{}{
		"url": "https://example.com/pricing",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "navigated to https://example.com/pricing")
	assert.Equal(t, "https://example.com/pricing", driver.URL)
}

func TestMCP_Click(t *testing.T) {
	s, driver := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleClick(context.Background(), callReq("browser_click", map[string]interface{}{
		"ref": "e1",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "clicked e1")

	driver.ClickFunc = func(ctx context.Context, ref string) error {
		return browser.ErrElementNotFound
	}
	res, err = s.handleClick(context.Background(), callReq("browser_click", map[string]interface{}{
		"ref": "e99",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "element not found")
}

func TestMCP_Type(t *testing.T) {
	s, _ := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleType(context.Background(), callReq("browser_type", map[string]interface{}{
		"ref":  "e2",
		"text": "hello",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, textOf(t, res), "typed 5 chars into e2")
}

func TestMCP_MemorySearch(t *testing.T) {
	s, _ := newMCPServer(t, testutils.NewMockLLM())

	res, err := s.handleMemorySearch(context.Background(), callReq("memory_search", map[string]interface{}{
		"query": "homepage",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "no matching memory entries", textOf(t, res))

	_, err = s.handleRunTask(context.Background(), callReq("run_task", map[string]interface{}{
		"goal": "check the homepage",
	}))
	require.NoError(t, err)

	res, err = s.handleMemorySearch(context.Background(), callReq("memory_search", map[string]interface{}{
		"query": "homepage",
		"limit": 3,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var results []memory.SearchResult
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, memory.TierEpisodic, results[0].Tier)
	assert.NotEmpty(t, results[0].Content)
}

func TestMCP_BrowserToolsRefusedDuringRun(t *testing.T) {
	release := make(chan struct{})
	m := testutils.NewMockLLM()
	m.CompleteFunc = func(ctx context.Context, _ []llms.Message, _ *llms.StructuredOutput) (string, int, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return "", 0, ctx.Err()
		}
		return donePlan, 10, nil
	}
	s, _ := newMCPServer(t, m)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.ag.Run(context.Background(), "long goal")
	}()
	require.Eventually(t, func() bool { return s.ag.Running() }, 2*time.Second, 5*time.Millisecond)

	res, err := s.handleSnapshot(context.Background(), callReq("browser_snapshot", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "a run is active")

	res, err = s.handleClick(context.Background(), callReq("browser_click", map[string]interface{}{
		"ref": "e1",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	res, err = s.handleSnapshot(context.Background(), callReq("browser_snapshot", map[string]interface{}{}))
	require.NoError(t, err)
	assert.False(t, res.IsError, "direct pokes work again once the run finished")
}
