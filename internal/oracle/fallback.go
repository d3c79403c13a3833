// internal/oracle/fallback.go
package oracle

import "github.com/xkilldash9x/playcheck-cli/api/schemas"

// FallbackAnalysis is the deterministic answer used when the model cannot be
// reached or its output cannot be parsed. A center-of-canvas click is the
// single most likely action to move an unknown game forward.
func FallbackAnalysis() *schemas.GameAnalysis {
	return &schemas.GameAnalysis{
		DetectedElements: []string{"Unknown"},
		SuggestedActions: []schemas.ActionSuggestion{
			{
				Verb:      schemas.VerbClick,
				Target:    "canvas",
				Rationale: "fallback interaction with the game surface",
			},
		},
		VisualAssessment:   "Automated analysis unavailable; using fallback heuristics.",
		InteractivityScore: 50,
	}
}

// FallbackEvaluation grades a run without model help. A page that loaded gets
// the benefit of the doubt; one that did not, does not.
func FallbackEvaluation(loadOK bool) *schemas.GameEvaluation {
	if loadOK {
		return &schemas.GameEvaluation{
			PlayabilityScore: 75,
			Grade:            "C",
			Confidence:       50,
			ScoreComponents: schemas.ScoreComponents{
				Visual: 75, Stability: 75, Interaction: 75, Load: 80,
			},
			Reasoning: "Automated evaluation unavailable. The game loaded and the session completed, so a provisional passing grade is assigned.",
		}
	}
	return &schemas.GameEvaluation{
		PlayabilityScore: 40,
		Grade:            "D",
		Confidence:       50,
		ScoreComponents: schemas.ScoreComponents{
			Visual: 40, Stability: 40, Interaction: 40, Load: 20,
		},
		Reasoning: "Automated evaluation unavailable and the game failed to load cleanly.",
		Issues: []schemas.QualityIssue{
			{
				Severity:    schemas.IssueCritical,
				Type:        "load-failure",
				Description: "The game page did not reach a playable state.",
				Confidence:  60,
			},
		},
	}
}
