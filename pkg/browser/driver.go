// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package browser defines the narrow driver contract the agent core consumes
// and provides the chromedp implementation of it.
//
// A driver exposes element records, not selectors: the snapshot engine
// assigns refs (e1, e2, ...) over the records and binds them back to the
// driver's internal locators. Refs are valid only until the next fresh
// snapshot; the driver rejects unbound refs.
package browser

import (
	"context"
	"encoding/json"
	"time"
)

// WaitUntil values accepted by Navigate.
const (
	WaitLoad        = "load"
	WaitDOMReady    = "domcontentloaded"
	WaitNetworkIdle = "networkidle"
)

// PageInfo describes the page after a navigation.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BBox is an element's viewport rectangle. Present only when the driver
// exposes geometry.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// AXNode is one interactive element as reported by the driver, in document
// order. Locator is the driver's internal handle; callers treat it as opaque
// and never render it to the LLM.
type AXNode struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
	Checked  *bool  `json:"checked,omitempty"`
	Selected *bool  `json:"selected,omitempty"`
	BBox     *BBox  `json:"bbox,omitempty"`
	Locator  string `json:"locator"`
}

// DefaultFallbackSelectors is the fixed selector set used to augment the
// accessibility tree when it yields too few elements.
var DefaultFallbackSelectors = []string{
	"button",
	"a[href]",
	"input:not([type=hidden])",
	"textarea",
	"select",
	"[role=button]",
	"[role=link]",
	"[role=textbox]",
	"[onclick]",
}

// Driver is the mockable browser contract. Implementations do not retry;
// retry policy belongs to the executor. Every call is bounded by its context
// deadline.
type Driver interface {
	// Navigate loads url and waits according to waitUntil (see Wait* consts).
	Navigate(ctx context.Context, url, waitUntil string) (PageInfo, error)

	// AccessibilityTree returns interactive elements in document order and
	// re-tags the page's locator handles, invalidating earlier locators.
	AccessibilityTree(ctx context.Context) ([]AXNode, error)

	// QueryElements returns elements matching the selector set that were not
	// already discovered by the latest AccessibilityTree pass. Locators
	// continue the same sequence.
	QueryElements(ctx context.Context, selectors []string) ([]AXNode, error)

	// BindRefs installs the ref -> locator table for the current snapshot.
	// Replaces any previous table.
	BindRefs(refs map[string]string)

	Click(ctx context.Context, ref string) error
	Type(ctx context.Context, ref, text string, clear bool) error
	Press(ctx context.Context, key string) error
	Select(ctx context.Context, ref, value string) error
	Hover(ctx context.Context, ref string) error
	Scroll(ctx context.Context, direction string, amount int) error

	// Wait sleeps for d, returning early if ctx is cancelled.
	Wait(ctx context.Context, d time.Duration) error

	Back(ctx context.Context) (PageInfo, error)
	Forward(ctx context.Context) (PageInfo, error)

	Screenshot(ctx context.Context) ([]byte, error)

	// Text returns the visible text of the page body.
	Text(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression and returns its JSON result.
	Evaluate(ctx context.Context, code string) (json.RawMessage, error)

	// Health probes browser liveness. Cheap; callers cache the result.
	Health(ctx context.Context) error

	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	Close() error
}
