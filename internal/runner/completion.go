// File: internal/runner/completion.go
package runner

import (
	"strings"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// completionVocabulary is the end-of-game language looked for in the
// oracle's element descriptions. Matching is substring-based so "Game Over
// banner" and "final score display" both register.
var completionVocabulary = []string{
	"game over", "you win", "you won", "you lose", "you lost",
	"victory", "defeat", "completed", "finished",
	"score:", "final score", "tie", "draw",
}

// assessmentVocabulary is the narrower set applied to the oracle's overall
// assessment, which is prose and would false-positive on the full list.
var assessmentVocabulary = []string{"game over", "completed", "win", "lose", "tie"}

// textualCompletion reports whether the oracle's reading of the page carries
// end-of-game language. It is one of two independent completion signals; the
// other is the structural board check, and either alone ends the round.
func textualCompletion(a *schemas.GameAnalysis) bool {
	if a == nil {
		return false
	}
	for _, el := range a.DetectedElements {
		t := strings.ToLower(el)
		for _, kw := range completionVocabulary {
			if strings.Contains(t, kw) {
				return true
			}
		}
	}
	assessment := strings.ToLower(a.VisualAssessment)
	for _, kw := range assessmentVocabulary {
		if strings.Contains(assessment, kw) {
			return true
		}
	}
	return false
}
