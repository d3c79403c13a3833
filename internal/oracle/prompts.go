// internal/oracle/prompts.go
package oracle

import "fmt"

const analysisSystemPrompt = `You are a QA analyst for browser games. You receive a screenshot of a
web game (and sometimes an excerpt of its visible text) and decide what a
human tester should try next. Respond ONLY with a JSON object matching:
{
  "detectedElements": ["string"],
  "suggestedActions": [{"action": "click|press-key|hover|scroll|drag", "target": "string", "reason": "string"}],
  "visualAssessment": "string",
  "interactivityScore": 0-100
}
Prefer actions that advance the game: starting it, making a move, or
responding to what is on screen. Targets are short descriptions like
"Start button", "empty cell", "game canvas", or a key name.`

const evaluationSystemPrompt = `You are a QA evaluator for browser games. You receive screenshots taken
across a test run plus a log of the actions performed and whether each one
changed the game state. Grade the game's playability. Respond ONLY with a
JSON object matching:
{
  "playabilityScore": 0-100,
  "grade": "A|B|C|D|F",
  "confidence": 0-100,
  "scoreComponents": {"visual": 0-100, "stability": 0-100, "interaction": 0-100, "load": 0-100},
  "reasoning": "string",
  "issues": [{"severity": "critical|major|minor", "type": "string", "description": "string", "confidence": 0-100}]
}
A game that loaded and responded to input deserves a passing grade even if
it is visually plain. A game that never reacted to any action does not.`

func analysisUserPrompt(iteration int, domExcerpt string) string {
	prompt := fmt.Sprintf(
		"This is iteration %d of the test session. Analyze the attached screenshot and suggest the next actions.",
		iteration,
	)
	if domExcerpt != "" {
		prompt += "\n\nVisible page text (truncated):\n" + domExcerpt
	}
	return prompt
}

func evaluationUserPrompt(actionLogJSON string, loadOK bool, screenshotCount int) string {
	loadNote := "The game page loaded successfully."
	if !loadOK {
		loadNote = "The game page FAILED to load cleanly."
	}
	return fmt.Sprintf(
		"%s The attached %d screenshot(s) span the whole run in order.\n\nAction log:\n%s",
		loadNote, screenshotCount, actionLogJSON,
	)
}
