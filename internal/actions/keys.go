// File: internal/actions/keys.go
package actions

import (
	"strings"

	"github.com/chromedp/chromedp/kb"
)

// keyAliases maps the oracle's key descriptions to chromedp key identifiers.
var keyAliases = map[string]string{
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"up":         kb.ArrowUp,
	"down":       kb.ArrowDown,
	"left":       kb.ArrowLeft,
	"right":      kb.ArrowRight,
	"up arrow":   kb.ArrowUp,
	"down arrow": kb.ArrowDown,
	"space":      " ",
	"spacebar":   " ",
	"space bar":  " ",
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"tab":        kb.Tab,
}

// ResolveKey turns a free-text key description into something PressKey can
// dispatch. Single characters pass through as-is ("w", "1"); anything
// unrecognized defaults to space, the most common game input.
func ResolveKey(target string) string {
	t := strings.ToLower(strings.TrimSpace(target))
	if k, ok := keyAliases[t]; ok {
		return k
	}
	// Strip decorations like "press the W key" down to the key itself.
	t = strings.TrimPrefix(t, "press ")
	t = strings.TrimPrefix(t, "the ")
	t = strings.TrimSuffix(t, " key")
	if k, ok := keyAliases[t]; ok {
		return k
	}
	if len([]rune(t)) == 1 {
		return t
	}
	return " "
}

// ResolveKeys expands a key description into the presses to dispatch.
// Directional language with no single key ("arrow keys", "wasd", "use the
// direction keys") becomes a sweep of all four arrows, which is what a
// movement-driven game needs to show any reaction at all.
func ResolveKeys(target string) []string {
	t := strings.ToLower(strings.TrimSpace(target))
	if k, ok := keyAliases[t]; ok {
		return []string{k}
	}
	stripped := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(t, "press "), "the "), " key")
	if k, ok := keyAliases[stripped]; ok {
		return []string{k}
	}
	if strings.Contains(t, "arrow") || strings.Contains(t, "wasd") || strings.Contains(t, "direction") {
		return []string{kb.ArrowUp, kb.ArrowDown, kb.ArrowLeft, kb.ArrowRight}
	}
	return []string{ResolveKey(target)}
}
