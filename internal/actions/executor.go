// File: internal/actions/executor.go
package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// clickableSelector covers the elements a text-matched click goes after.
const clickableSelector = `button, [role="button"], a, input[type="button"], input[type="submit"]`

// cellSelector matches board-cell candidates across class-name conventions.
const cellSelector = `.cell, .square, .tile, td, [data-cell]`

// draggableSelector matches drag sources: cards (skipping face-down backs)
// and anything explicitly marked draggable.
const draggableSelector = `.card:not([class*="back"]), [class*="card"]:not([class*="back"]), [draggable="true"]`

// emptyCellExpr finds the first empty cell of a board-style game and returns
// its viewport center. Cells are matched structurally, not by the oracle's
// wording, so it works across class-name conventions.
const emptyCellExpr = `(() => {
	const selectors = [".cell", ".square", ".tile", "td", "[data-cell]", "[data-index]"];
	for (const sel of selectors) {
		const cells = document.querySelectorAll(sel);
		if (cells.length < 2) {
			continue;
		}
		for (const cell of cells) {
			const text = (cell.textContent || "").trim();
			if (text === "" && cell.children.length === 0) {
				const r = cell.getBoundingClientRect();
				if (r.width > 0 && r.height > 0) {
					return { found: true, x: r.x + r.width / 2, y: r.y + r.height / 2 };
				}
			}
		}
	}
	return { found: false, x: 0, y: 0 };
})()`

// boardFullExpr reports whether every recognizable board cell is occupied.
const boardFullExpr = `(() => {
	const cells = document.querySelectorAll('.cell, .square, .tile, td, [data-cell]');
	if (cells.length < 2) {
		return false;
	}
	for (const cell of cells) {
		if ((cell.textContent || "").trim() === "") {
			return false;
		}
	}
	return true;
})()`

// point is a resolved viewport coordinate.
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Executor turns oracle action suggestions into input dispatched through a
// PageDriver. Every click strategy degrades down a fallback chain that ends
// at the viewport center, so a suggestion is never simply dropped: even a
// blind center click can dismiss an overlay or register a canvas tap.
type Executor struct {
	driver schemas.PageDriver
	logger *zap.Logger

	viewportW float64
	viewportH float64
}

// NewExecutor creates an action executor for one page.
func NewExecutor(driver schemas.PageDriver, logger *zap.Logger, viewportW, viewportH int) *Executor {
	return &Executor{
		driver:    driver,
		logger:    logger.Named("actions"),
		viewportW: float64(viewportW),
		viewportH: float64(viewportH),
	}
}

// Perform executes a single suggestion. The returned error means the driver
// itself failed (dead target, canceled context); a suggestion that merely
// missed its element still performs a fallback and reports success.
func (e *Executor) Perform(ctx context.Context, s schemas.ActionSuggestion) error {
	class := Classify(s.Target)
	log := e.logger.With(
		zap.String("verb", string(s.Verb)),
		zap.String("target", s.Target),
		zap.String("class", string(class)),
	)

	switch s.Verb {
	case schemas.VerbClick:
		return e.click(ctx, log, s.Target, class)

	case schemas.VerbHover:
		pt := e.resolveTarget(ctx, s.Target, class)
		log.Debug("Dispatching hover.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
		return e.driver.Hover(ctx, pt.X, pt.Y)

	case schemas.VerbPressKey:
		keys := ResolveKeys(s.Target)
		log.Debug("Dispatching key presses.", zap.Strings("keys", keys))
		for _, k := range keys {
			if err := e.driver.PressKey(ctx, k); err != nil {
				return err
			}
		}
		return nil

	case schemas.VerbScroll:
		dy := 300.0
		if strings.Contains(strings.ToLower(s.Target), "up") {
			dy = -300.0
		}
		log.Debug("Dispatching scroll.", zap.Float64("dy", dy))
		return e.driver.Scroll(ctx, 0, dy)

	case schemas.VerbDrag:
		return e.drag(ctx, log, s.Target)

	default:
		// Unknown verbs degrade to a center click rather than failing the
		// whole iteration.
		log.Warn("Unknown action verb; falling back to center click.")
		pt := e.center()
		return e.driver.Click(ctx, pt.X, pt.Y)
	}
}

// click dispatches the per-class click strategy chain.
func (e *Executor) click(ctx context.Context, log *zap.Logger, target string, class TargetClass) error {
	switch class {
	case ClassCanvas:
		return e.clickCanvas(ctx, log)
	case ClassCell:
		return e.clickCell(ctx, log)
	default:
		pt := e.resolveTarget(ctx, target, class)
		log.Debug("Dispatching click.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
		return e.driver.Click(ctx, pt.X, pt.Y)
	}
}

// clickCanvas hits the rendering surface at its center and then just above
// and below it, since some games bind input to sub-regions. A page
// with no canvas at all gets a center click plus a space key, which starts
// a surprising number of games.
func (e *Executor) clickCanvas(ctx context.Context, log *zap.Logger) error {
	if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
		log.Debug("Clicking canvas center and sub-regions.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
		if err := e.driver.Click(ctx, pt.X, pt.Y); err != nil {
			return err
		}
		if err := e.driver.Click(ctx, pt.X, pt.Y-50); err != nil {
			return err
		}
		return e.driver.Click(ctx, pt.X, pt.Y+50)
	}

	log.Debug("No canvas found; clicking viewport center and sending space.")
	c := e.center()
	if err := e.driver.Click(ctx, c.X, c.Y); err != nil {
		return err
	}
	return e.driver.PressKey(ctx, " ")
}

// clickCell walks the board-game chain: structurally empty cell first; a
// fully occupied board means the round is over, so a restart control is the
// right thing to click; then a fixed 3x3 positional grid, each point
// re-verified as an empty cell before clicking; center click last.
func (e *Executor) clickCell(ctx context.Context, log *zap.Logger) error {
	if pt, ok := e.locateEmptyCell(ctx); ok {
		log.Debug("Clicking empty cell.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
		return e.driver.Click(ctx, pt.X, pt.Y)
	}

	if e.boardFull(ctx) {
		if pt, ok := e.locateByWords(ctx, "", restartWords); ok {
			log.Debug("Board full; clicking restart control instead.")
			return e.driver.Click(ctx, pt.X, pt.Y)
		}
	}

	for _, pt := range e.gridPoints() {
		if e.emptyCellAtPoint(ctx, pt) {
			log.Debug("Clicking grid-position cell.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
			return e.driver.Click(ctx, pt.X, pt.Y)
		}
	}

	log.Debug("No empty cell resolvable; clicking viewport center.")
	c := e.center()
	return e.driver.Click(ctx, c.X, c.Y)
}

// resolveTarget walks the per-class strategy chain and returns the best
// coordinate it could find, falling back to the viewport center.
func (e *Executor) resolveTarget(ctx context.Context, target string, class TargetClass) point {
	switch class {
	case ClassCanvas:
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
			return pt
		}

	case ClassRestart:
		if pt, ok := e.locateByWords(ctx, target, restartWords); ok {
			return pt
		}
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
			return pt
		}

	case ClassStart:
		if pt, ok := e.locateByWords(ctx, target, startWords); ok {
			return pt
		}
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
			return pt
		}

	case ClassCell:
		if pt, ok := e.locateEmptyCell(ctx); ok {
			return pt
		}
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: cellSelector}); ok {
			return pt
		}
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
			return pt
		}

	case ClassButton, ClassGeneric:
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: clickableSelector, Text: target}); ok {
			return pt
		}
		if looksLikeSelector(target) {
			if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: target}); ok {
				return pt
			}
		}
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"}); ok {
			return pt
		}
	}

	return e.center()
}

// locateByWords tries the literal target text first, then each synonym.
func (e *Executor) locateByWords(ctx context.Context, target string, words []string) (point, bool) {
	if target != "" {
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: clickableSelector, Text: target}); ok {
			return pt, true
		}
	}
	for _, w := range words {
		if pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: clickableSelector, Text: w}); ok {
			return pt, true
		}
	}
	return point{}, false
}

func (e *Executor) locate(ctx context.Context, q schemas.ElementQuery) (point, bool) {
	info, err := e.driver.Locate(ctx, q)
	if err != nil || !info.Found || !info.Visible {
		return point{}, false
	}
	return point{X: info.X, Y: info.Y}, true
}

func (e *Executor) locateEmptyCell(ctx context.Context) (point, bool) {
	var res struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := e.driver.Evaluate(ctx, emptyCellExpr, &res); err != nil || !res.Found {
		return point{}, false
	}
	return point{X: res.X, Y: res.Y}, true
}

func (e *Executor) boardFull(ctx context.Context) bool {
	var full bool
	if err := e.driver.Evaluate(ctx, boardFullExpr, &full); err != nil {
		return false
	}
	return full
}

// gridPoints is the fixed 3x3 screen-position heuristic for boards whose
// cells cannot be enumerated structurally.
func (e *Executor) gridPoints() []point {
	xs := []float64{e.viewportW * 5 / 16, e.viewportW / 2, e.viewportW * 11 / 16}
	ys := []float64{e.viewportH * 5 / 18, e.viewportH / 2, e.viewportH * 13 / 18}

	pts := make([]point, 0, 9)
	for _, y := range ys {
		for _, x := range xs {
			pts = append(pts, point{X: x, Y: y})
		}
	}
	return pts
}

// emptyCellAtPoint re-verifies a positional guess: the element under the
// point must actually be an unoccupied board cell before it earns a click.
func (e *Executor) emptyCellAtPoint(ctx context.Context, pt point) bool {
	expr := fmt.Sprintf(`(() => {
		const el = document.elementFromPoint(%.0f, %.0f);
		if (!el) {
			return false;
		}
		const cell = el.closest('%s');
		if (!cell) {
			return false;
		}
		return (cell.textContent || "").trim() === "";
	})()`, pt.X, pt.Y, cellSelector)

	var empty bool
	if err := e.driver.Evaluate(ctx, expr, &empty); err != nil {
		return false
	}
	return empty
}

func (e *Executor) center() point {
	return point{X: e.viewportW / 2, Y: e.viewportH / 2}
}

// drag prefers an element-based gesture: a card-like or draggable source,
// with the destination disambiguated by description keywords (foundation,
// tableau) or any visibly different element of the same kind. A located
// source with no destination still drags, from the source's own position
// with a description-derived offset. Only when no source exists at all does
// the gesture degrade to generic viewport coordinates.
func (e *Executor) drag(ctx context.Context, log *zap.Logger, target string) error {
	if src, ok := e.locate(ctx, schemas.ElementQuery{Selector: draggableSelector}); ok {
		if dst, ok := e.dragDestination(ctx, target, src); ok {
			log.Debug("Dispatching element-based drag.",
				zap.Float64("from_x", src.X), zap.Float64("from_y", src.Y),
				zap.Float64("to_x", dst.X), zap.Float64("to_y", dst.Y))
			return e.driver.Drag(ctx, src.X, src.Y, dst.X, dst.Y)
		}

		to := dragOffsetTarget(target, src)
		log.Debug("Dispatching source-relative drag.",
			zap.Float64("from_x", src.X), zap.Float64("from_y", src.Y),
			zap.Float64("to_x", to.X), zap.Float64("to_y", to.Y))
		return e.driver.Drag(ctx, src.X, src.Y, to.X, to.Y)
	}

	from, to := e.dragEndpoints(target)
	log.Debug("Dispatching coordinate drag.",
		zap.Float64("from_x", from.X), zap.Float64("from_y", from.Y),
		zap.Float64("to_x", to.X), zap.Float64("to_y", to.Y))
	return e.driver.Drag(ctx, from.X, from.Y, to.X, to.Y)
}

// dragDestination resolves where an element-based drag should land.
func (e *Executor) dragDestination(ctx context.Context, target string, src point) (point, bool) {
	t := strings.ToLower(target)
	switch {
	case strings.Contains(t, "foundation"):
		return e.locate(ctx, schemas.ElementQuery{Selector: `.foundationBase, [id*="foundation"], [class*="foundation"]`})
	case strings.Contains(t, "tableau"), strings.Contains(t, "column"):
		return e.locate(ctx, schemas.ElementQuery{Selector: `.tableauPileBase, [id*="tableau"], [class*="tableau"]`})
	}
	return e.otherDraggable(ctx, src)
}

// otherDraggable finds a visibly different element of the same draggable
// kind as the source, by position.
func (e *Executor) otherDraggable(ctx context.Context, src point) (point, bool) {
	expr := fmt.Sprintf(`(() => {
		const candidates = document.querySelectorAll('%s');
		for (const el of candidates) {
			const r = el.getBoundingClientRect();
			if (r.width > 0 && r.height > 0) {
				const x = r.x + r.width / 2;
				const y = r.y + r.height / 2;
				if (Math.abs(x - %.0f) > 10 || Math.abs(y - %.0f) > 10) {
					return { found: true, x: x, y: y };
				}
			}
		}
		return { found: false, x: 0, y: 0 };
	})()`, draggableSelector, src.X, src.Y)

	var res struct {
		Found bool    `json:"found"`
		X     float64 `json:"x"`
		Y     float64 `json:"y"`
	}
	if err := e.driver.Evaluate(ctx, expr, &res); err != nil || !res.Found {
		return point{}, false
	}
	return point{X: res.X, Y: res.Y}, true
}

// dragOffsetTarget derives a drop point from the description when only the
// source element is known. Foundations sit up and to the right, tableau
// columns below; the default is a short up-right toss.
func dragOffsetTarget(target string, src point) point {
	t := strings.ToLower(target)
	switch {
	case strings.Contains(t, "foundation"):
		return point{X: src.X + 300, Y: src.Y - 200}
	case strings.Contains(t, "tableau"), strings.Contains(t, "column"):
		return point{X: src.X, Y: src.Y + 150}
	default:
		return point{X: src.X + 200, Y: src.Y - 100}
	}
}

// dragEndpoints derives a fully generic drag gesture from the target
// description. The default is a horizontal swipe through the viewport
// center.
func (e *Executor) dragEndpoints(target string) (point, point) {
	c := e.center()
	dx, dy := e.viewportW/4, 0.0

	t := strings.ToLower(target)
	switch {
	case strings.Contains(t, "vertical"), strings.Contains(t, "down"), strings.Contains(t, "up"):
		dx, dy = 0, e.viewportH/4
		if strings.Contains(t, "up") {
			dy = -dy
		}
	case strings.Contains(t, "diagonal"):
		dx, dy = e.viewportW/4, e.viewportH/4
	case strings.Contains(t, "left"):
		dx = -dx
	}

	return point{X: c.X - dx/2, Y: c.Y - dy/2}, point{X: c.X + dx/2, Y: c.Y + dy/2}
}

// ActivateSurface clicks the center of the primary rendering surface so it
// holds keyboard focus before the first oracle analysis. Best effort; pages
// without a canvas are left alone.
func (e *Executor) ActivateSurface(ctx context.Context) {
	pt, ok := e.locate(ctx, schemas.ElementQuery{Selector: "canvas"})
	if !ok {
		return
	}
	if err := e.driver.Click(ctx, pt.X, pt.Y); err != nil {
		e.logger.Debug("Canvas activation click failed.", zap.Error(err))
		return
	}
	e.logger.Debug("Canvas activated.", zap.Float64("x", pt.X), zap.Float64("y", pt.Y))
}

// DismissOverlays clicks common close/dismiss controls of the blocking
// layers (cookie banners, modals, ad frames) so the game surface receives
// input. Best effort; the page not having any is the normal case.
func (e *Executor) DismissOverlays(ctx context.Context) {
	var dismissed int
	expr := `(() => {
		const selectors = [
			'button[class*="close"]',
			'button[class*="dismiss"]',
			'[aria-label*="close" i]',
			'[aria-label*="dismiss" i]',
			'.modal-close',
			'.cookie-close',
			'#ad-close',
			'[id*="close-ad"]'
		];
		let clicked = 0;
		for (const sel of selectors) {
			let el;
			try {
				el = document.querySelector(sel);
			} catch (err) {
				continue;
			}
			if (!el) {
				continue;
			}
			const r = el.getBoundingClientRect();
			if (r.width > 0 && r.height > 0) {
				el.click();
				clicked++;
			}
		}
		return clicked;
	})()`
	if err := e.driver.Evaluate(ctx, expr, &dismissed); err != nil {
		e.logger.Debug("Overlay sweep failed.", zap.Error(err))
		return
	}
	if dismissed > 0 {
		e.logger.Info(fmt.Sprintf("Dismissed %d overlay control(s).", dismissed))
	}
}

// looksLikeSelector reports whether the oracle handed us a CSS selector
// instead of a description.
func looksLikeSelector(target string) bool {
	t := strings.TrimSpace(target)
	if t == "" || strings.Contains(t, " ") {
		return false
	}
	return strings.HasPrefix(t, "#") || strings.HasPrefix(t, ".") || strings.HasPrefix(t, "[")
}
