package browser

import (
	"errors"
	"testing"

	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/argus/pkg/config"
)

func TestNewChromeDriver_Defaults(t *testing.T) {
	d := NewChromeDriver(nil)

	assert.True(t, d.cfg.IsHeadless())
	assert.Equal(t, 1280, d.cfg.WindowWidth)
	assert.Equal(t, 1024, d.cfg.WindowHeight)
	assert.NotZero(t, d.cfg.DefaultTimeout)
}

func TestNewChromeDriver_HeadlessOverride(t *testing.T) {
	d := NewChromeDriver(&config.BrowserConfig{Headless: config.BoolPtr(false)})

	assert.False(t, d.cfg.IsHeadless())
	// Other fields still get defaults.
	assert.Equal(t, 1280, d.cfg.WindowWidth)
}

func TestChromeDriver_BindRefs(t *testing.T) {
	d := NewChromeDriver(nil)
	d.BindRefs(map[string]string{"e1": "3", "e2": "7"})

	sel, err := d.resolveRef("e1")
	require.NoError(t, err)
	assert.Equal(t, `[data-argus-loc="3"]`, sel)

	_, err = d.resolveRef("e99")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))
}

func TestChromeDriver_BindRefsReplacesTable(t *testing.T) {
	d := NewChromeDriver(nil)
	d.BindRefs(map[string]string{"e1": "3"})
	d.BindRefs(map[string]string{"e1": "5"})

	sel, err := d.resolveRef("e1")
	require.NoError(t, err)
	assert.Equal(t, `[data-argus-loc="5"]`, sel)
}

func TestMapKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{"enter", "Enter", kb.Enter},
		{"lowercase enter", "enter", kb.Enter},
		{"tab", "Tab", kb.Tab},
		{"escape", "Escape", kb.Escape},
		{"esc alias", "esc", kb.Escape},
		{"arrow down", "ArrowDown", kb.ArrowDown},
		{"down alias", "down", kb.ArrowDown},
		{"page up", "PageUp", kb.PageUp},
		{"literal char", "a", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, mapKey(tt.key))
		})
	}
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `"hello"`, jsString("hello"))
	assert.Equal(t, `"with \"quotes\""`, jsString(`with "quotes"`))
}

func TestDefaultFallbackSelectors(t *testing.T) {
	assert.NotEmpty(t, DefaultFallbackSelectors)
	assert.Contains(t, DefaultFallbackSelectors, "button")
	assert.Contains(t, DefaultFallbackSelectors, "a[href]")
}
