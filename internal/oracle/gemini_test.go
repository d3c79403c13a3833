// internal/oracle/gemini_test.go
package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
)

// scriptedGenerator serves canned responses (or errors) in order, recording
// what it was asked.
type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int

	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (g *scriptedGenerator) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	i := g.calls
	g.calls++
	g.lastContents = contents
	g.lastConfig = cfg

	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", errors.New("scripted generator exhausted")
}

func testOracleConfig() config.OracleConfig {
	return config.OracleConfig{
		Enabled:     true,
		Model:       "gemini-2.5-flash",
		Temperature: 0.3,
		MaxTokens:   2048,
		MaxRetries:  0, // no retries in unit tests
	}
}

func TestSuggestActionsParsesModelOutput(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		"```json\n" + `{
			"detectedElements": ["Start button", "canvas"],
			"suggestedActions": [
				{"action": "click", "target": "Start button", "reason": "begin the game"},
				{"action": "press-key", "target": "space", "reason": "jump"}
			],
			"visualAssessment": "clean title screen",
			"interactivityScore": 85
		}` + "\n```",
	}}
	o := newGemini(gen, testOracleConfig(), zap.NewNop())

	analysis, err := o.SuggestActions(context.Background(), []byte("png-bytes"), "PLAY NOW", 1)
	require.NoError(t, err)
	require.Len(t, analysis.SuggestedActions, 2)
	assert.Equal(t, schemas.VerbClick, analysis.SuggestedActions[0].Verb)
	assert.Equal(t, "Start button", analysis.SuggestedActions[0].Target)
	assert.Equal(t, 85, analysis.InteractivityScore)

	// The request must carry the screenshot and ask for JSON.
	require.Len(t, gen.lastContents, 1)
	assert.Len(t, gen.lastContents[0].Parts, 2)
	assert.Equal(t, "application/json", gen.lastConfig.ResponseMIMEType)
	require.NotNil(t, gen.lastConfig.SystemInstruction)
}

func TestSuggestActionsFallsBackOnModelError(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("503 overloaded")}}
	o := newGemini(gen, testOracleConfig(), zap.NewNop())

	analysis, err := o.SuggestActions(context.Background(), []byte("png"), "", 2)
	require.NoError(t, err, "model failure must degrade, not propagate")
	require.Len(t, analysis.SuggestedActions, 1)
	assert.Equal(t, schemas.VerbClick, analysis.SuggestedActions[0].Verb)
	assert.Equal(t, "canvas", analysis.SuggestedActions[0].Target)
	assert.Equal(t, 50, analysis.InteractivityScore)
}

func TestSuggestActionsFallsBackOnGarbageOutput(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"I cannot help with that."}}
	o := newGemini(gen, testOracleConfig(), zap.NewNop())

	analysis, err := o.SuggestActions(context.Background(), []byte("png"), "", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unknown"}, analysis.DetectedElements)
}

func TestSuggestActionsSanitizesPartialOutput(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"suggestedActions":[{"target":"Start button"}],"interactivityScore":250}`,
	}}
	o := newGemini(gen, testOracleConfig(), zap.NewNop())

	analysis, err := o.SuggestActions(context.Background(), []byte("png"), "", 1)
	require.NoError(t, err)
	assert.Equal(t, schemas.VerbClick, analysis.SuggestedActions[0].Verb, "missing verb defaults to click")
	assert.Equal(t, 100, analysis.InteractivityScore, "scores clamp to 0-100")
}

func TestSuggestActionsRequiresScreenshot(t *testing.T) {
	o := newGemini(&scriptedGenerator{}, testOracleConfig(), zap.NewNop())
	_, err := o.SuggestActions(context.Background(), nil, "", 1)
	assert.Error(t, err)
}

func TestEvaluateQualityCapsScreenshots(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"playabilityScore": 88, "grade": "B", "confidence": 90}`,
	}}
	o := newGemini(gen, testOracleConfig(), zap.NewNop())

	snapshots := make([]schemas.Snapshot, 10)
	for i := range snapshots {
		snapshots[i] = schemas.Snapshot{ID: "s", VisualData: []byte{byte(i)}}
	}

	eval, err := o.EvaluateQuality(context.Background(), snapshots, nil, true)
	require.NoError(t, err)
	assert.Equal(t, 88, eval.PlayabilityScore)

	// One text part plus at most four image parts.
	require.Len(t, gen.lastContents, 1)
	assert.Len(t, gen.lastContents[0].Parts, 1+evaluationScreenshotCap)
}

func TestEvaluateQualityFallbackGrades(t *testing.T) {
	t.Run("loaded game gets provisional pass", func(t *testing.T) {
		gen := &scriptedGenerator{errs: []error{errors.New("down")}}
		o := newGemini(gen, testOracleConfig(), zap.NewNop())

		eval, err := o.EvaluateQuality(context.Background(), nil, nil, true)
		require.NoError(t, err)
		assert.Equal(t, 75, eval.PlayabilityScore)
		assert.Equal(t, "C", eval.Grade)
		assert.Equal(t, 50, eval.Confidence)
	})

	t.Run("unloaded game fails", func(t *testing.T) {
		gen := &scriptedGenerator{errs: []error{errors.New("down")}}
		o := newGemini(gen, testOracleConfig(), zap.NewNop())

		eval, err := o.EvaluateQuality(context.Background(), nil, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 40, eval.PlayabilityScore)
		assert.Equal(t, "D", eval.Grade)
		require.Len(t, eval.Issues, 1)
		assert.Equal(t, schemas.IssueCritical, eval.Issues[0].Severity)
	})
}

func TestSampleSnapshots(t *testing.T) {
	snapshots := make([]schemas.Snapshot, 10)
	for i := range snapshots {
		snapshots[i] = schemas.Snapshot{Label: string(rune('a' + i))}
	}

	picked := sampleSnapshots(snapshots, 4)
	require.Len(t, picked, 4)
	assert.Equal(t, "a", picked[0].Label, "first snapshot always kept")
	assert.Equal(t, "j", picked[3].Label, "last snapshot always kept")

	// Short runs pass through untouched.
	assert.Len(t, sampleSnapshots(snapshots[:3], 4), 3)
}

func TestStaticOracle(t *testing.T) {
	s := NewStatic(zap.NewNop())

	analysis, err := s.SuggestActions(context.Background(), nil, "", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.SuggestedActions)

	eval, err := s.EvaluateQuality(context.Background(), nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "C", eval.Grade)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SuggestActions(ctx, nil, "", 1)
	assert.Error(t, err)
}
