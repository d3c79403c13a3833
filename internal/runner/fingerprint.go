// File: internal/runner/fingerprint.go
package runner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// stateExpr serializes the aspects of the page that matter for move
// detection: visible text, board cell contents, score displays, and button
// states. Everything else (animations, timers, ads) is noise that would make
// every fingerprint unique.
const stateExpr = `(() => {
	const state = {};
	state.text = (document.body ? document.body.innerText : "").slice(0, 500);

	const squares = [];
	document.querySelectorAll(".cell, .square, .tile, td, [data-cell]").forEach(el => {
		const t = (el.textContent || "").trim().toUpperCase();
		if (t === "X" || t === "O") {
			squares.push(t);
		} else if (t === "") {
			squares.push("_");
		} else {
			squares.push("?");
		}
	});
	state.squares = squares.join("");

	const scores = [];
	document.querySelectorAll('[class*="score"], [id*="score"]').forEach(el => {
		scores.push((el.textContent || "").trim());
	});
	state.scores = scores.join("|");

	const buttons = [];
	document.querySelectorAll("button").forEach(b => {
		buttons.push((b.textContent || "").trim() + ":" + (b.disabled ? "D" : "E"));
	});
	state.buttons = buttons.join("|");

	return JSON.stringify(state);
})()`

// hashString is the 31-multiplier rolling hash over UTF-16 code units,
// accumulated in 32-bit integer arithmetic. Deterministic across runs and
// platforms for identical input.
func hashString(s string) string {
	var h int32
	for _, c := range s {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}

// Fingerprint captures a stable digest of the current game state. The
// fallback chain never fails outright: a page where the state expression
// breaks degrades to hashing the full document, and a page that cannot even
// do that yields a timestamp. The timestamp fallback means "always changed",
// which keeps the loop moving instead of wedging it.
func (r *Runner) fingerprint(ctx context.Context) string {
	var state string
	if err := r.driver.Evaluate(ctx, stateExpr, &state); err == nil && state != "" {
		return hashString(state)
	}

	var raw string
	if err := r.driver.Evaluate(ctx, `document.documentElement.outerHTML`, &raw); err == nil && raw != "" {
		return hashString(documentText(raw))
	}

	return fmt.Sprintf("ts-%d", time.Now().UnixNano())
}

// documentText reduces an HTML document to its visible text so the hash is
// not perturbed by attribute churn (animation classes, inline style ticks)
// that does not reflect a real state change. Script and style bodies are
// skipped. Unparseable input is hashed as-is.
func documentText(raw string) string {
	var b strings.Builder
	skipDepth := 0

	z := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed markup; either way use what we have.
			if b.Len() == 0 {
				return raw
			}
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if t := strings.TrimSpace(string(z.Text())); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
	}
}

// boardExpr reads the structural completion signals of a grid game: how many
// cells are taken, whether a win/tie class showed up, and whether a restart
// control is visible.
const boardExpr = `(() => {
	const out = { filledCount: 0, totalCells: 0, hasWinClass: false, restartVisible: false, allFilled: false };

	const selectors = [".cell", ".square", ".tile", "td", "[data-cell]"];
	let cells = [];
	for (const sel of selectors) {
		const found = document.querySelectorAll(sel);
		if (found.length >= 2) {
			cells = Array.from(found);
			break;
		}
	}
	out.totalCells = cells.length;
	for (const cell of cells) {
		if ((cell.textContent || "").trim() !== "") {
			out.filledCount++;
		}
	}
	out.allFilled = out.totalCells > 0 && out.filledCount === out.totalCells;

	if (document.querySelector('[class*="win"], [class*="winner"], [class*="victory"], [class*="tie"], [class*="draw"], [class*="game-over"]')) {
		out.hasWinClass = true;
	}

	const words = ["restart", "reset", "play again", "new game"];
	for (const b of document.querySelectorAll('button, [role="button"], a')) {
		const t = (b.textContent || "").trim().toLowerCase();
		if (words.some(w => t.includes(w))) {
			const r = b.getBoundingClientRect();
			if (r.width > 0 && r.height > 0) {
				out.restartVisible = true;
				break;
			}
		}
	}
	return out;
})()`

// readBoard returns the structural board state, or a zero value when the
// page has no recognizable board.
func (r *Runner) readBoard(ctx context.Context) schemas.BoardState {
	var board schemas.BoardState
	if err := r.driver.Evaluate(ctx, boardExpr, &board); err != nil {
		return schemas.BoardState{}
	}
	return board
}
