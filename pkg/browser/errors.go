package browser

import "errors"

// Sentinel errors drivers wrap so the executor can classify failures without
// string matching.
var (
	// ErrDriverUnavailable means the browser process is gone or never
	// started. Fatal to the run.
	ErrDriverUnavailable = errors.New("browser driver unavailable")

	// ErrElementNotFound means the ref resolved to no element on the page.
	ErrElementNotFound = errors.New("element not found")

	// ErrElementNotVisible means the element exists but cannot be interacted
	// with.
	ErrElementNotVisible = errors.New("element not visible")

	// ErrElementDetached means the element left the DOM between snapshot and
	// action.
	ErrElementDetached = errors.New("element detached")

	// ErrInvalidRef means the ref was never bound by the current snapshot.
	ErrInvalidRef = errors.New("invalid element ref")

	// ErrUnhealthy means the liveness probe failed.
	ErrUnhealthy = errors.New("browser unhealthy")
)
