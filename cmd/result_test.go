// File: cmd/result_test.go
package cmd

import (
	"bytes"
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
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/mocks"
)

// mockRepositoryProvider injects a mock repository into runResult.
type mockRepositoryProvider struct {
	repo schemas.Repository
	err  error

	cleanupCalled bool
}

func (p *mockRepositoryProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Repository, func(), error) {
	if p.err != nil {
		return nil, nil, p.err
	}
	return p.repo, func() { p.cleanupCalled = true }, nil
}

func TestRunResultLogic(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	cfg := config.NewDefaultConfig()

	t.Run("writes the stored run to the output file", func(t *testing.T) {
		repo := &mocks.MockRepository{}
		repo.On("GetResult", mock.Anything, "run-7").Return(&schemas.RunResult{
			RunID:   "run-7",
			GameURL: "https://game.example",
			Outcome: schemas.OutcomeSuccess,
		}, nil)
		provider := &mockRepositoryProvider{repo: repo}

		path := filepath.Join(t.TempDir(), "run.json")
		err := runResult(ctx, logger, cfg, "run-7", path, provider)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var decoded schemas.RunResult
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, "run-7", decoded.RunID)
		assert.Equal(t, schemas.OutcomeSuccess, decoded.Outcome)
		assert.True(t, provider.cleanupCalled, "connection cleanup must run")
		repo.AssertExpectations(t)
	})

	t.Run("fails when the provider cannot connect", func(t *testing.T) {
		providerErr := errors.New("database URL is not configured")
		provider := &mockRepositoryProvider{err: providerErr}

		err := runResult(ctx, logger, cfg, "run-7", "", provider)
		require.Error(t, err)
		assert.ErrorIs(t, err, providerErr)
	})

	t.Run("propagates a missing run", func(t *testing.T) {
		repo := &mocks.MockRepository{}
		notFound := errors.New("run not found: nope")
		repo.On("GetResult", mock.Anything, "nope").Return(nil, notFound)
		provider := &mockRepositoryProvider{repo: repo}

		err := runResult(ctx, logger, cfg, "nope", "", provider)
		require.Error(t, err)
		assert.ErrorIs(t, err, notFound)
		assert.True(t, provider.cleanupCalled)
	})
}

func TestRunResultListLogic(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()
	cfg := config.NewDefaultConfig()

	t.Run("prints a summary table", func(t *testing.T) {
		repo := &mocks.MockRepository{}
		repo.On("ListResults", mock.Anything, 5).Return([]schemas.RunSummary{
			{RunID: "run-7", GameURL: "https://game.example", Outcome: schemas.OutcomeSuccess, Duration: 42 * time.Second},
		}, nil)
		provider := &mockRepositoryProvider{repo: repo}

		var out bytes.Buffer
		err := runResultList(ctx, logger, cfg, 5, provider, &out)
		require.NoError(t, err)

		assert.Contains(t, out.String(), "run-7")
		assert.Contains(t, out.String(), "SUCCESS")
		assert.Contains(t, out.String(), "https://game.example")
		assert.True(t, provider.cleanupCalled)
		repo.AssertExpectations(t)
	})

	t.Run("reports an empty store", func(t *testing.T) {
		repo := &mocks.MockRepository{}
		repo.On("ListResults", mock.Anything, 20).Return(nil, nil)
		provider := &mockRepositoryProvider{repo: repo}

		var out bytes.Buffer
		require.NoError(t, runResultList(ctx, logger, cfg, 20, provider, &out))
		assert.Contains(t, out.String(), "No stored runs")
	})
}
