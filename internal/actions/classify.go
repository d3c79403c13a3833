// File: internal/actions/classify.go
package actions

import "strings"

// TargetClass is the closed set of target categories the executor dispatches
// on. The oracle's free-text target descriptions are normalized into exactly
// one of these before any strategy runs.
type TargetClass string

const (
	ClassCanvas  TargetClass = "canvas"
	ClassRestart TargetClass = "restart"
	ClassStart   TargetClass = "start"
	ClassCell    TargetClass = "cell"
	ClassButton  TargetClass = "button"
	ClassGeneric TargetClass = "generic"
)

var (
	restartWords = []string{"restart", "reset", "replay", "again", "new game", "play again"}
	startWords   = []string{"start", "play", "begin", "go", "launch"}
	cellWords    = []string{"cell", "square", "grid", "tile", "board"}
	buttonWords  = []string{"button", "btn"}
)

// Classify maps a free-text target description to its class. Restart wins
// over start ("restart" contains "start"), and canvas wins over everything:
// the oracle often says "game canvas" when it means the render surface.
func Classify(target string) TargetClass {
	t := strings.ToLower(strings.TrimSpace(target))
	switch {
	case t == "":
		return ClassGeneric
	case strings.Contains(t, "canvas"):
		return ClassCanvas
	case containsAny(t, restartWords):
		return ClassRestart
	case containsAny(t, startWords):
		return ClassStart
	case containsAny(t, cellWords):
		return ClassCell
	case containsAny(t, buttonWords):
		return ClassButton
	default:
		return ClassGeneric
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
