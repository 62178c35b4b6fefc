package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSnapshot(url string, elements []Element) *Snapshot {
	return newSnapshot(url, "Test Page", time.Now(), elements, false, false)
}

func TestSnapshot_Render(t *testing.T) {
	checked := true
	selected := true
	snap := newSnapshot("https://example.com/", "Example", time.Now(), []Element{
		{Ref: "e1", Role: "button", Name: "Submit"},
		{Ref: "e2", Role: "textbox", Name: "Email", Value: "a@b.c"},
		{Ref: "e3", Role: "checkbox", Name: "Agree", Checked: &checked},
		{Ref: "e4", Role: "button", Name: "Locked", Disabled: true},
		{Ref: "e5", Role: "option", Name: "Red", Selected: &selected},
	}, true, false)

	out := snap.Render()
	assert.Contains(t, out, "Page: Example\nURL: https://example.com/\n")
	assert.Contains(t, out, `[e1] button "Submit"`)
	assert.Contains(t, out, `[e2] textbox "Email" value="a@b.c"`)
	assert.Contains(t, out, `[e3] checkbox "Agree" checked=true`)
	assert.Contains(t, out, `[e4] button "Locked" disabled`)
	assert.Contains(t, out, `[e5] option "Red" selected`)
	assert.Contains(t, out, "(element list truncated)")
}

func TestSnapshot_RenderEmpty(t *testing.T) {
	snap := buildSnapshot("https://example.com/", nil)
	assert.Contains(t, snap.Render(), "No interactive elements found.")
}

func TestSnapshot_Lookups(t *testing.T) {
	snap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "link", Name: "Sign In"},
		{Ref: "e2", Role: "button", Name: "Sign Up"},
		{Ref: "e3", Role: "button", Name: "Help"},
	})

	el, ok := snap.Ref("e2")
	require.True(t, ok)
	assert.Equal(t, "Sign Up", el.Name)

	_, ok = snap.Ref("e9")
	assert.False(t, ok)

	buttons := snap.ByRole("button")
	require.Len(t, buttons, 2)
	assert.Equal(t, "e2", buttons[0].Ref)

	found := snap.FindByName("sign")
	require.Len(t, found, 2)
	assert.Equal(t, "Sign In", found[0].Name)
	assert.Equal(t, "Sign Up", found[1].Name)

	assert.Empty(t, snap.FindByName("logout"))
}

func TestSnapshot_Equal(t *testing.T) {
	yes, no := true, false
	base := func() *Snapshot {
		return buildSnapshot("https://example.com/", []Element{
			{Ref: "e1", Role: "textbox", Name: "Search", Value: "q"},
			{Ref: "e2", Role: "checkbox", Name: "Agree", Checked: &yes},
		})
	}

	assert.True(t, base().Equal(base()))
	assert.False(t, base().Equal(nil))

	other := base()
	other.URL = "https://example.com/other"
	assert.False(t, base().Equal(other))

	other = base()
	other.Elements = other.Elements[:1]
	assert.False(t, base().Equal(other))

	other = base()
	other.Elements[0].Value = "changed"
	assert.False(t, base().Equal(other))

	other = base()
	other.Elements[1].Checked = &no
	assert.False(t, base().Equal(other))

	// Refs are renumbered between snapshots and do not affect equality.
	other = base()
	other.Elements[0].Ref = "e7"
	assert.True(t, base().Equal(other))
}

func TestComputeDiff(t *testing.T) {
	oldSnap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "textbox", Name: "Search", Value: ""},
		{Ref: "e2", Role: "button", Name: "Go"},
		{Ref: "e3", Role: "link", Name: "Gone"},
	})
	newSnap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "textbox", Name: "Search", Value: "hello"},
		{Ref: "e2", Role: "button", Name: "Go"},
		{Ref: "e3", Role: "link", Name: "Fresh"},
	})

	d := computeDiff(oldSnap, newSnap)
	require.Len(t, d.Changed, 1)
	assert.Equal(t, "hello", d.Changed[0].Value)
	require.Len(t, d.Added, 1)
	assert.Equal(t, "Fresh", d.Added[0].Name)
	require.Len(t, d.Removed, 1)
	assert.Equal(t, "Gone", d.Removed[0].Name)
}

func TestComputeDiff_RepeatedKeys(t *testing.T) {
	// Two identical buttons shrink to one: positional pairing matches the
	// first and reports the second as removed.
	oldSnap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "button", Name: "Delete"},
		{Ref: "e2", Role: "button", Name: "Delete", Disabled: true},
	})
	newSnap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "button", Name: "Delete"},
	})

	d := computeDiff(oldSnap, newSnap)
	assert.Empty(t, d.Added)
	assert.Empty(t, d.Changed)
	require.Len(t, d.Removed, 1)
	assert.True(t, d.Removed[0].Disabled)
}

func TestComputeDiff_Unchanged(t *testing.T) {
	snap := buildSnapshot("https://example.com/", []Element{
		{Ref: "e1", Role: "button", Name: "Go"},
	})
	d := computeDiff(snap, snap)
	assert.True(t, d.Empty())
	assert.Equal(t, "Page unchanged.\n", d.Render())
}

func TestDiff_Render(t *testing.T) {
	d := &Diff{
		URL:     "https://example.com/",
		Added:   []Element{{Ref: "e2", Role: "link", Name: "Next"}},
		Removed: []Element{{Ref: "e1", Role: "button", Name: "Go"}},
		Changed: []Element{{Ref: "e3", Role: "textbox", Name: "Search", Value: "hi"}},
	}

	out := d.Render()
	assert.Contains(t, out, "Page changes (URL: https://example.com/):")
	assert.Contains(t, out, `+ [e2] link "Next"`)
	assert.Contains(t, out, `- [e1] button "Go"`)
	assert.Contains(t, out, `~ [e3] textbox "Search" value="hi"`)
}

func TestBoolPtrEqual(t *testing.T) {
	yes, alsoYes, no := true, true, false
	assert.True(t, boolPtrEqual(nil, nil))
	assert.True(t, boolPtrEqual(&yes, &alsoYes))
	assert.False(t, boolPtrEqual(&yes, &no))
	assert.False(t, boolPtrEqual(&yes, nil))
	assert.False(t, boolPtrEqual(nil, &no))
}
