// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// dragSteps is how many intermediate mouse-move events a drag emits.
const dragSteps = 8

// Page drives the manager's current tab. It implements schemas.PageDriver.
// All methods re-resolve the tab context, so a Page obtained before a
// Relaunch keeps working against the replacement browser.
type Page struct {
	mgr    *Manager
	logger *zap.Logger
}

var _ schemas.PageDriver = (*Page)(nil)

// run executes chromedp actions on the current tab, bounded by both the tab
// lifetime and the caller's context.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	target := p.mgr.target()
	if target == nil {
		return ErrNotStarted
	}
	runCtx, cancel := CombineContext(target, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the load event. If the full load does
// not finish within timeout, a relaxed retry at half the timeout accepts the
// page as soon as the DOM stops being in the "loading" state; many
// asset-heavy games never fire a clean load event, yet are perfectly
// playable.
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	strictCtx, cancel := context.WithTimeout(ctx, timeout)
	err := p.run(strictCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	cancel()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	p.logger.Warn("Full page load timed out; retrying with relaxed readiness.",
		zap.String("url", url), zap.Duration("timeout", timeout))

	relaxedCtx, cancel := context.WithTimeout(ctx, timeout/2)
	defer cancel()
	var ready bool
	err = p.run(relaxedCtx,
		chromedp.Navigate(url),
		chromedp.Poll(`document.readyState !== "loading"`, &ready),
	)
	if err != nil {
		return fmt.Errorf("relaxed navigation to %s failed: %w", url, err)
	}
	return nil
}

// Screenshot captures the current viewport as PNG bytes.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// DOMText returns the page's visible text content.
func (p *Page) DOMText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(
		`document.body ? document.body.innerText : ""`, &text,
	))
	if err != nil {
		return "", fmt.Errorf("failed to read page text: %w", err)
	}
	return text, nil
}

// Evaluate runs a JavaScript expression in the page and decodes the JSON
// result into out. A nil out discards the result.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	return p.run(ctx, chromedp.Evaluate(expr, out))
}

// Locate resolves an element query to its viewport geometry. Matching happens
// entirely inside the page to avoid round-tripping node lists over CDP.
func (p *Page) Locate(ctx context.Context, q schemas.ElementQuery) (schemas.ElementInfo, error) {
	expr := fmt.Sprintf(`(() => {
		const sel = %q;
		const want = %q.toLowerCase();
		const none = { found: false, x: 0, y: 0, width: 0, height: 0, visible: false };
		let candidates;
		try {
			candidates = Array.from(document.querySelectorAll(sel));
		} catch (e) {
			return none;
		}
		for (const el of candidates) {
			if (want && !(el.textContent || "").toLowerCase().includes(want)) {
				continue;
			}
			const r = el.getBoundingClientRect();
			if (r.width <= 0 || r.height <= 0) {
				continue;
			}
			const style = window.getComputedStyle(el);
			const visible = style.visibility !== "hidden" && style.display !== "none";
			return {
				found: true,
				x: r.x + r.width / 2,
				y: r.y + r.height / 2,
				width: r.width,
				height: r.height,
				visible: visible,
			};
		}
		return none;
	})()`, q.Selector, q.Text)

	var info schemas.ElementInfo
	if err := p.run(ctx, chromedp.Evaluate(expr, &info)); err != nil {
		return schemas.ElementInfo{}, fmt.Errorf("element lookup %q failed: %w", q.Selector, err)
	}
	return info, nil
}

// Click dispatches a trusted click at viewport coordinates: a move, a press,
// and a release, the way a real pointer would arrive.
func (p *Page) Click(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		move := input.DispatchMouseEvent(input.MouseMoved, x, y)
		if err := move.Do(ctx); err != nil {
			return err
		}
		press := input.DispatchMouseEvent(input.MousePressed, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		if err := press.Do(ctx); err != nil {
			return err
		}
		release := input.DispatchMouseEvent(input.MouseReleased, x, y).
			WithButton(input.Left).
			WithClickCount(1)
		return release.Do(ctx)
	}))
}

// Hover moves the pointer to viewport coordinates without pressing.
func (p *Page) Hover(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

// Drag presses at the start point, moves through intermediate points, and
// releases at the end point. Canvas games that implement their own drag
// handling need the intermediate moves to register the gesture.
func (p *Page) Drag(ctx context.Context, fromX, fromY, toX, toY float64) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		press := input.DispatchMouseEvent(input.MousePressed, fromX, fromY).
			WithButton(input.Left).
			WithClickCount(1)
		if err := press.Do(ctx); err != nil {
			return err
		}
		for i := 1; i <= dragSteps; i++ {
			t := float64(i) / float64(dragSteps)
			x := fromX + (toX-fromX)*t
			y := fromY + (toY-fromY)*t
			move := input.DispatchMouseEvent(input.MouseMoved, x, y).
				WithButton(input.Left)
			if err := move.Do(ctx); err != nil {
				return err
			}
		}
		release := input.DispatchMouseEvent(input.MouseReleased, toX, toY).
			WithButton(input.Left).
			WithClickCount(1)
		return release.Do(ctx)
	}))
}

// PressKey sends a keyboard key. Accepts chromedp key identifiers (e.g.
// kb.ArrowLeft) or plain runes like "w" and " ".
func (p *Page) PressKey(ctx context.Context, key string) error {
	return p.run(ctx, chromedp.KeyEvent(key))
}

// Scroll scrolls the viewport by the given deltas, anchored at the viewport
// center so canvas wheel handlers receive the event.
func (p *Page) Scroll(ctx context.Context, dx, dy float64) error {
	cx := float64(p.mgr.cfg.ViewportWidth) / 2
	cy := float64(p.mgr.cfg.ViewportHeight) / 2
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		wheel := input.DispatchMouseEvent(input.MouseWheel, cx, cy).
			WithDeltaX(dx).
			WithDeltaY(dy)
		return wheel.Do(ctx)
	}))
}

// Healthy reports whether the tab still evaluates JavaScript. A dead target
// fails fast rather than hanging the run.
func (p *Page) Healthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var two int
	if err := p.run(probeCtx, chromedp.Evaluate(`1+1`, &two)); err != nil {
		return false
	}
	return two == 2
}
