// internal/oracle/static.go
package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// Static is the oracle used when no model is configured. Every answer is the
// deterministic fallback, which keeps runs reproducible in CI and lets the
// orchestrator exercise a game without an API key.
type Static struct {
	logger *zap.Logger
}

var _ schemas.Oracle = (*Static)(nil)

// NewStatic creates the model-free oracle.
func NewStatic(logger *zap.Logger) *Static {
	return &Static{logger: logger.Named("oracle.static")}
}

func (s *Static) SuggestActions(ctx context.Context, screenshot []byte, domText string, iteration int) (*schemas.GameAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("Serving static action suggestions.", zap.Int("iteration", iteration))
	return FallbackAnalysis(), nil
}

func (s *Static) EvaluateQuality(ctx context.Context, snapshots []schemas.Snapshot, log []schemas.ActionRecord, loadOK bool) (*schemas.GameEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("Serving static evaluation.", zap.Bool("load_ok", loadOK))
	return FallbackEvaluation(loadOK), nil
}
