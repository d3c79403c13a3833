package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/actions"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/mocks"
	"github.com/xkilldash9x/playcheck-cli/internal/runner"
)

func TestComponentsShutdownEmpty(t *testing.T) {
	// Shutdown on a zero-value Components must be a safe no-op.
	assert.NotPanics(t, func() {
		(&Components{}).Shutdown()
	})
}

// newLoadFailureComponents wires a Components whose run fails at navigation,
// which is the shortest path through a complete Runner.Run.
func newLoadFailureComponents(t *testing.T, repo schemas.Repository) *Components {
	t.Helper()

	driver := &mocks.MockPageDriver{}
	driver.On("Navigate", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("net::ERR_NAME_NOT_RESOLVED"))
	driver.On("Screenshot", mock.Anything).Return([]byte("shot"), nil)
	driver.On("DOMText", mock.Anything).Return("", nil)

	orc := &mocks.MockOracle{}
	orc.On("EvaluateQuality", mock.Anything, mock.Anything, mock.Anything, false).
		Return(&schemas.GameEvaluation{PlayabilityScore: 40, Grade: "D"}, nil)

	exec := actions.NewExecutor(driver, zap.NewNop(), 1280, 720)
	r := runner.New(driver, orc, exec, config.RunnerConfig{
		MaxIterations:       1,
		MaxTotalActions:     1,
		ActionsPerIteration: 1,
		StuckThreshold:      3,
		SnapshotBudget:      5,
	}, zap.NewNop())

	return &Components{Runner: r, Oracle: orc, Store: repo}
}

func TestRunSessionPersistsResult(t *testing.T) {
	repo := &mocks.MockRepository{}
	repo.On("SaveResult", mock.Anything, mock.MatchedBy(func(res *schemas.RunResult) bool {
		return res.Outcome == schemas.OutcomeFailure && res.RunID != ""
	})).Return(nil)

	c := newLoadFailureComponents(t, repo)
	res, err := c.RunSession(context.Background(), "http://game.test", schemas.RunOptions{})
	require.NoError(t, err)
	require.NotNil(t, res)

	repo.AssertExpectations(t)
}

func TestRunSessionSurvivesPersistenceFailure(t *testing.T) {
	repo := &mocks.MockRepository{}
	repo.On("SaveResult", mock.Anything, mock.Anything).
		Return(errors.New("database is down"))

	c := newLoadFailureComponents(t, repo)
	res, err := c.RunSession(context.Background(), "http://game.test", schemas.RunOptions{})
	require.NoError(t, err, "a failed save must not fail the session")
	assert.Equal(t, schemas.OutcomeFailure, res.Outcome)
}

func TestRunSessionWithoutStore(t *testing.T) {
	c := newLoadFailureComponents(t, nil)
	res, err := c.RunSession(context.Background(), "http://game.test", schemas.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, schemas.OutcomeFailure, res.Outcome)
}
