package schemas

import (
	"context"
	"time"
)

// Oracle is the AI analysis surface. Implementations must degrade to
// deterministic fallback values rather than return errors for transient
// upstream trouble; an error from these methods means the input itself was
// unusable.
type Oracle interface {
	// SuggestActions reads a screenshot (and optional DOM text) and proposes
	// the next interactions to try.
	SuggestActions(ctx context.Context, screenshot []byte, domText string, iteration int) (*GameAnalysis, error)

	// EvaluateQuality grades the whole run from its collected evidence.
	EvaluateQuality(ctx context.Context, snapshots []Snapshot, log []ActionRecord, loadOK bool) (*GameEvaluation, error)
}

// ElementQuery describes a lookup the driver resolves inside the page.
type ElementQuery struct {
	Selector string
	// Text, when set, restricts matches to elements whose visible text
	// contains it (case-insensitive).
	Text string
}

// ElementInfo is the driver's answer to an ElementQuery hit test.
type ElementInfo struct {
	Found   bool    `json:"found"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Visible bool    `json:"visible"`
}

// PageDriver is the narrow browser surface the runner and action executor
// operate through. The chromedp-backed implementation lives in
// internal/browser; tests substitute mocks.
type PageDriver interface {
	// Navigate loads the URL and waits for the load event, within timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// DOMText returns the serialized page text used for fingerprinting and
	// oracle context.
	DOMText(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression in the page and decodes the
	// JSON result into out. A nil out discards the result.
	Evaluate(ctx context.Context, expr string, out any) error

	// Locate resolves an element query to its viewport geometry.
	Locate(ctx context.Context, q ElementQuery) (ElementInfo, error)

	// Click dispatches a trusted click at viewport coordinates.
	Click(ctx context.Context, x, y float64) error

	// Hover moves the pointer to viewport coordinates.
	Hover(ctx context.Context, x, y float64) error

	// Drag presses at the start point, moves, and releases at the end point.
	Drag(ctx context.Context, fromX, fromY, toX, toY float64) error

	// PressKey sends a keyboard key (chromedp key identifier or rune).
	PressKey(ctx context.Context, key string) error

	// Scroll scrolls the viewport by the given deltas.
	Scroll(ctx context.Context, dx, dy float64) error

	// Healthy reports whether the underlying target is still responsive.
	Healthy(ctx context.Context) bool
}

// Repository persists finished runs. A nil repository means persistence is
// disabled; the run result is still returned to the caller.
type Repository interface {
	// SaveResult writes one finished run and its evidence atomically.
	SaveResult(ctx context.Context, res *RunResult) error

	// GetResult loads a previously saved run by its ID.
	GetResult(ctx context.Context, runID string) (*RunResult, error)

	// ListResults returns summaries of the most recent runs, newest first.
	ListResults(ctx context.Context, limit int) ([]RunSummary, error)
}

// ProgressSink receives the ordered event stream a run emits. Implementations
// must be fast or buffer internally; the runner calls them inline.
type ProgressSink interface {
	Emit(ev ProgressEvent)
}

// ProgressSinkFunc adapts a function to the ProgressSink interface.
type ProgressSinkFunc func(ev ProgressEvent)

// Emit calls f(ev).
func (f ProgressSinkFunc) Emit(ev ProgressEvent) { f(ev) }

// NopSink discards all events.
type NopSink struct{}

// Emit discards ev.
func (NopSink) Emit(ProgressEvent) {}
