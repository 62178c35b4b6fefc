package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kadirpekel/argus/pkg/browser"
)

// MockDriver implements the browser.Driver interface for testing.
//
// Every method can be overridden with a Func field; unset methods fall back
// to simple in-memory behavior driven by the exported state fields. OpDelay
// and OpError apply to all page operations.
type MockDriver struct {
	mu sync.Mutex

	// Nodes is returned by AccessibilityTree.
	Nodes []browser.AXNode

	// FallbackNodes is returned by QueryElements.
	FallbackNodes []browser.AXNode

	// URL and PageTitle describe the current page.
	URL       string
	PageTitle string

	// BodyText is returned by Text.
	BodyText string

	// ScreenshotData is returned by Screenshot.
	ScreenshotData []byte

	// BoundRefs records the last BindRefs table.
	BoundRefs map[string]string

	// Calls records method names in invocation order.
	Calls []string

	// OpDelay delays every operation; OpError fails every operation.
	OpDelay time.Duration
	OpError error

	NavigateFunc          func(ctx context.Context, url, waitUntil string) (browser.PageInfo, error)
	AccessibilityTreeFunc func(ctx context.Context) ([]browser.AXNode, error)
	QueryElementsFunc     func(ctx context.Context, selectors []string) ([]browser.AXNode, error)
	ClickFunc             func(ctx context.Context, ref string) error
	TypeFunc              func(ctx context.Context, ref, text string, clear bool) error
	PressFunc             func(ctx context.Context, key string) error
	SelectFunc            func(ctx context.Context, ref, value string) error
	HoverFunc             func(ctx context.Context, ref string) error
	ScrollFunc            func(ctx context.Context, direction string, amount int) error
	WaitFunc              func(ctx context.Context, d time.Duration) error
	BackFunc              func(ctx context.Context) (browser.PageInfo, error)
	ForwardFunc           func(ctx context.Context) (browser.PageInfo, error)
	ScreenshotFunc        func(ctx context.Context) ([]byte, error)
	TextFunc              func(ctx context.Context) (string, error)
	EvaluateFunc          func(ctx context.Context, code string) (json.RawMessage, error)
	HealthFunc            func(ctx context.Context) error
	CurrentURLFunc        func(ctx context.Context) (string, error)
	TitleFunc             func(ctx context.Context) (string, error)
	CloseFunc             func() error
}

// NewMockDriver creates a mock driver with a small default page.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		URL:       "https://example.com/",
		PageTitle: "Example",
		BodyText:  "Example Domain",
		Nodes: []browser.AXNode{
			{Role: "link", Name: "More information", Locator: "1"},
			{Role: "button", Name: "Submit", Locator: "2"},
		},
	}
}

// record logs a call and applies OpDelay/OpError.
func (m *MockDriver) record(ctx context.Context, method string) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, method)
	delay := m.OpDelay
	opErr := m.OpError
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return opErr
}

// CallCount returns how many times method was invoked.
func (m *MockDriver) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// SetNodes replaces the accessibility tree the mock reports.
func (m *MockDriver) SetNodes(nodes []browser.AXNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nodes = nodes
}

// SetOpError sets an error returned by every operation.
func (m *MockDriver) SetOpError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpError = err
}

func (m *MockDriver) Navigate(ctx context.Context, url, waitUntil string) (browser.PageInfo, error) {
	if err := m.record(ctx, "Navigate"); err != nil {
		return browser.PageInfo{}, err
	}
	if m.NavigateFunc != nil {
		return m.NavigateFunc(ctx, url, waitUntil)
	}
	m.mu.Lock()
	m.URL = url
	title := m.PageTitle
	m.mu.Unlock()
	return browser.PageInfo{URL: url, Title: title}, nil
}

func (m *MockDriver) AccessibilityTree(ctx context.Context) ([]browser.AXNode, error) {
	if err := m.record(ctx, "AccessibilityTree"); err != nil {
		return nil, err
	}
	if m.AccessibilityTreeFunc != nil {
		return m.AccessibilityTreeFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := make([]browser.AXNode, len(m.Nodes))
	copy(nodes, m.Nodes)
	return nodes, nil
}

func (m *MockDriver) QueryElements(ctx context.Context, selectors []string) ([]browser.AXNode, error) {
	if err := m.record(ctx, "QueryElements"); err != nil {
		return nil, err
	}
	if m.QueryElementsFunc != nil {
		return m.QueryElementsFunc(ctx, selectors)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes := make([]browser.AXNode, len(m.FallbackNodes))
	copy(nodes, m.FallbackNodes)
	return nodes, nil
}

func (m *MockDriver) BindRefs(refs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "BindRefs")
	m.BoundRefs = refs
}

func (m *MockDriver) Click(ctx context.Context, ref string) error {
	if err := m.record(ctx, "Click"); err != nil {
		return err
	}
	if m.ClickFunc != nil {
		return m.ClickFunc(ctx, ref)
	}
	return nil
}

func (m *MockDriver) Type(ctx context.Context, ref, text string, clear bool) error {
	if err := m.record(ctx, "Type"); err != nil {
		return err
	}
	if m.TypeFunc != nil {
		return m.TypeFunc(ctx, ref, text, clear)
	}
	return nil
}

func (m *MockDriver) Press(ctx context.Context, key string) error {
	if err := m.record(ctx, "Press"); err != nil {
		return err
	}
	if m.PressFunc != nil {
		return m.PressFunc(ctx, key)
	}
	return nil
}

func (m *MockDriver) Select(ctx context.Context, ref, value string) error {
	if err := m.record(ctx, "Select"); err != nil {
		return err
	}
	if m.SelectFunc != nil {
		return m.SelectFunc(ctx, ref, value)
	}
	return nil
}

func (m *MockDriver) Hover(ctx context.Context, ref string) error {
	if err := m.record(ctx, "Hover"); err != nil {
		return err
	}
	if m.HoverFunc != nil {
		return m.HoverFunc(ctx, ref)
	}
	return nil
}

func (m *MockDriver) Scroll(ctx context.Context, direction string, amount int) error {
	if err := m.record(ctx, "Scroll"); err != nil {
		return err
	}
	if m.ScrollFunc != nil {
		return m.ScrollFunc(ctx, direction, amount)
	}
	return nil
}

func (m *MockDriver) Wait(ctx context.Context, d time.Duration) error {
	if err := m.record(ctx, "Wait"); err != nil {
		return err
	}
	if m.WaitFunc != nil {
		return m.WaitFunc(ctx, d)
	}
	return nil
}

func (m *MockDriver) Back(ctx context.Context) (browser.PageInfo, error) {
	if err := m.record(ctx, "Back"); err != nil {
		return browser.PageInfo{}, err
	}
	if m.BackFunc != nil {
		return m.BackFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return browser.PageInfo{URL: m.URL, Title: m.PageTitle}, nil
}

func (m *MockDriver) Forward(ctx context.Context) (browser.PageInfo, error) {
	if err := m.record(ctx, "Forward"); err != nil {
		return browser.PageInfo{}, err
	}
	if m.ForwardFunc != nil {
		return m.ForwardFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return browser.PageInfo{URL: m.URL, Title: m.PageTitle}, nil
}

func (m *MockDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if err := m.record(ctx, "Screenshot"); err != nil {
		return nil, err
	}
	if m.ScreenshotFunc != nil {
		return m.ScreenshotFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ScreenshotData != nil {
		return m.ScreenshotData, nil
	}
	return []byte("mock-png"), nil
}

func (m *MockDriver) Text(ctx context.Context) (string, error) {
	if err := m.record(ctx, "Text"); err != nil {
		return "", err
	}
	if m.TextFunc != nil {
		return m.TextFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BodyText, nil
}

func (m *MockDriver) Evaluate(ctx context.Context, code string) (json.RawMessage, error) {
	if err := m.record(ctx, "Evaluate"); err != nil {
		return nil, err
	}
	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, code)
	}
	return json.RawMessage(`null`), nil
}

func (m *MockDriver) Health(ctx context.Context) error {
	if err := m.record(ctx, "Health"); err != nil {
		return err
	}
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	if err := m.record(ctx, "CurrentURL"); err != nil {
		return "", err
	}
	if m.CurrentURLFunc != nil {
		return m.CurrentURLFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.URL, nil
}

func (m *MockDriver) Title(ctx context.Context) (string, error) {
	if err := m.record(ctx, "Title"); err != nil {
		return "", err
	}
	if m.TitleFunc != nil {
		return m.TitleFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PageTitle, nil
}

func (m *MockDriver) Close() error {
	m.mu.Lock()
	m.Calls = append(m.Calls, "Close")
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Ensure MockDriver implements Driver
var _ browser.Driver = (*MockDriver)(nil)
