// internal/oracle/parser_test.go
package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

func TestParseJSONResponse(t *testing.T) {
	t.Run("plain JSON object", func(t *testing.T) {
		res, err := ParseJSONResponse[schemas.GameAnalysis](
			`{"detectedElements":["canvas"],"interactivityScore":80}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"canvas"}, res.DetectedElements)
		assert.Equal(t, 80, res.InteractivityScore)
	})

	t.Run("markdown-wrapped object", func(t *testing.T) {
		response := "```json\n{\"interactivityScore\": 65, \"visualAssessment\": \"looks fine\"}\n```"
		res, err := ParseJSONResponse[schemas.GameAnalysis](response)
		require.NoError(t, err)
		assert.Equal(t, 65, res.InteractivityScore)
		assert.Equal(t, "looks fine", res.VisualAssessment)
	})

	t.Run("markdown without language tag", func(t *testing.T) {
		response := "```\n{\"grade\": \"B\"}\n```"
		res, err := ParseJSONResponse[schemas.GameEvaluation](response)
		require.NoError(t, err)
		assert.Equal(t, "B", res.Grade)
	})

	t.Run("object buried in conversational text", func(t *testing.T) {
		response := `Sure! Here is the analysis you asked for:
{"playabilityScore": 90, "grade": "A"}
Let me know if you need anything else.`
		res, err := ParseJSONResponse[schemas.GameEvaluation](response)
		require.NoError(t, err)
		assert.Equal(t, 90, res.PlayabilityScore)
		assert.Equal(t, "A", res.Grade)
	})

	t.Run("markdown-wrapped array", func(t *testing.T) {
		response := "```json\n[{\"action\":\"click\",\"target\":\"canvas\"}]\n```"
		res, err := ParseJSONResponse[[]schemas.ActionSuggestion](response)
		require.NoError(t, err)
		require.Len(t, *res, 1)
		assert.Equal(t, schemas.VerbClick, (*res)[0].Verb)
	})

	t.Run("unparseable input fails with context", func(t *testing.T) {
		_, err := ParseJSONResponse[schemas.GameAnalysis]("this is not json at all")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal")
	})
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 10))
	assert.Equal(t, "abcde...", truncateString("abcdefghij", 5))
	assert.Equal(t, "", truncateString("abc", 0))
}
