// File: cmd/run_test.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/actions"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/mocks"
	"github.com/xkilldash9x/playcheck-cli/internal/runner"
	"github.com/xkilldash9x/playcheck-cli/internal/service"
)

// mockComponentFactory lets tests inject pre-built session components.
type mockComponentFactory struct {
	mock.Mock
}

func (m *mockComponentFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger, extraSinks ...schemas.ProgressSink) (*service.Components, error) {
	args := m.Called(ctx, cfg, logger)
	if c, ok := args.Get(0).(*service.Components); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// newStubComponents builds Components whose run fails at navigation, the
// shortest complete path through the runner.
func newStubComponents(t *testing.T) *service.Components {
	t.Helper()

	driver := &mocks.MockPageDriver{}
	driver.On("Navigate", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("net::ERR_CONNECTION_REFUSED"))
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

	return &service.Components{Runner: r, Oracle: orc}
}

func TestApplyRunFlagOverrides(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, cfg config.Interface)
	}{
		{
			name: "timeout and iteration flags override defaults",
			args: []string{"--timeout", "30s", "--max-iterations", "8"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.Equal(t, 30*time.Second, cfg.Runner().NavigationTimeout)
				assert.Equal(t, 8, cfg.Runner().MaxIterations)
			},
		},
		{
			name: "run-timeout flag sets the session deadline",
			args: []string{"--run-timeout", "3m"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.Equal(t, 3*time.Minute, cfg.Runner().MaxRunDuration)
			},
		},
		{
			name: "snapshot budget flag overrides default",
			args: []string{"--snapshot-budget", "12"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.Equal(t, 12, cfg.Runner().SnapshotBudget)
			},
		},
		{
			name: "headless can be switched off",
			args: []string{"--headless=false"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.False(t, cfg.Browser().Headless)
			},
		},
		{
			name: "no-ai disables the oracle",
			args: []string{"--no-ai"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.False(t, cfg.Oracle().Enabled)
			},
		},
		{
			name: "model flag overrides config",
			args: []string{"--model", "gemini-2.5-pro"},
			verify: func(t *testing.T, cfg config.Interface) {
				assert.Equal(t, "gemini-2.5-pro", cfg.Oracle().Model)
			},
		},
		{
			name: "no flags keeps defaults",
			args: []string{},
			verify: func(t *testing.T, cfg config.Interface) {
				defaults := config.NewDefaultConfig()
				assert.Equal(t, defaults.Runner().MaxIterations, cfg.Runner().MaxIterations)
				assert.Equal(t, defaults.Browser().Headless, cfg.Browser().Headless)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			runCmd := newRunCmd(nil)
			require.NoError(t, runCmd.ParseFlags(tt.args))

			applyRunFlagOverrides(runCmd, cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestNormalizeGameURL(t *testing.T) {
	assert.Equal(t, "https://game.example/play", normalizeGameURL("game.example/play"))
	assert.Equal(t, "http://localhost:8080", normalizeGameURL("http://localhost:8080"))
	assert.Equal(t, "https://game.example", normalizeGameURL("https://game.example"))
}

func TestRunGameLogic(t *testing.T) {
	logger := zap.NewNop()
	baseCtx := context.Background()
	cfg := config.NewDefaultConfig()

	t.Run("successful run returns the result", func(t *testing.T) {
		mockFactory := new(mockComponentFactory)
		mockFactory.On("Create", mock.Anything, cfg, mock.AnythingOfType("*zap.Logger")).
			Return(newStubComponents(t), nil)

		res, err := runGame(baseCtx, logger, cfg, "https://game.example", mockFactory)

		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, schemas.OutcomeFailure, res.Outcome)
		mockFactory.AssertExpectations(t)
	})

	t.Run("fails when component factory returns an error", func(t *testing.T) {
		mockFactory := new(mockComponentFactory)
		factoryErr := errors.New("failed to launch browser")
		mockFactory.On("Create", mock.Anything, cfg, mock.AnythingOfType("*zap.Logger")).
			Return(nil, factoryErr)

		_, err := runGame(baseCtx, logger, cfg, "https://game.example", mockFactory)

		require.Error(t, err)
		assert.ErrorIs(t, err, factoryErr)
		assert.Contains(t, err.Error(), "failed to initialize session components")
		mockFactory.AssertExpectations(t)
	})
}

func TestWriteResult(t *testing.T) {
	logger := zap.NewNop()
	res := &schemas.RunResult{
		RunID:   "run-1",
		GameURL: "https://game.example",
		Outcome: schemas.OutcomePartialSuccess,
	}

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, writeResult(res, path, "json", logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded schemas.RunResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, schemas.OutcomePartialSuccess, decoded.Outcome)
}
