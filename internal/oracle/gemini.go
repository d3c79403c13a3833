// internal/oracle/gemini.go
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
)

// domExcerptLimit caps how much page text rides along with a screenshot.
const domExcerptLimit = 2000

// evaluationScreenshotCap is the most screenshots an evaluation request
// carries. More adds cost without adding signal.
const evaluationScreenshotCap = 4

// generator abstracts the model call so tests can script responses.
type generator interface {
	generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

// genaiGenerator is the production generator backed by the Google GenAI SDK.
type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("model returned no text content")
	}
	return text, nil
}

// Gemini is the production oracle. Model trouble never propagates to the
// caller: transient failures retry with exponential backoff, and anything
// that still fails degrades to the deterministic fallbacks.
type Gemini struct {
	gen     generator
	cfg     config.OracleConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ schemas.Oracle = (*Gemini)(nil)

// NewGemini creates the Gemini-backed oracle.
func NewGemini(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newGemini(&genaiGenerator{client: client, model: cfg.Model}, cfg, logger), nil
}

// newGemini wires an arbitrary generator; tests inject scripted ones here.
func newGemini(gen generator, cfg config.OracleConfig, logger *zap.Logger) *Gemini {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}
	return &Gemini{
		gen:     gen,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.Named("oracle.gemini"),
	}
}

// SuggestActions reads a screenshot and proposes the next interactions.
func (o *Gemini) SuggestActions(ctx context.Context, screenshot []byte, domText string, iteration int) (*schemas.GameAnalysis, error) {
	if len(screenshot) == 0 {
		return nil, fmt.Errorf("screenshot is required for analysis")
	}

	parts := []*genai.Part{
		genai.NewPartFromText(analysisUserPrompt(iteration, truncateString(domText, domExcerptLimit))),
		genai.NewPartFromBytes(screenshot, "image/png"),
	}

	text, err := o.invoke(ctx, analysisSystemPrompt, parts)
	if err != nil {
		o.logger.Warn("Analysis request failed; using fallback suggestions.",
			zap.Int("iteration", iteration), zap.Error(err))
		return FallbackAnalysis(), nil
	}

	analysis, err := ParseJSONResponse[schemas.GameAnalysis](text)
	if err != nil {
		o.logger.Warn("Analysis response unparseable; using fallback suggestions.",
			zap.Int("iteration", iteration), zap.Error(err))
		return FallbackAnalysis(), nil
	}

	sanitizeAnalysis(analysis)
	o.logger.Info("Analysis complete.",
		zap.Int("iteration", iteration),
		zap.Int("suggested_actions", len(analysis.SuggestedActions)),
		zap.Int("interactivity_score", analysis.InteractivityScore),
	)
	return analysis, nil
}

// EvaluateQuality grades the whole run from its collected evidence.
func (o *Gemini) EvaluateQuality(ctx context.Context, snapshots []schemas.Snapshot, log []schemas.ActionRecord, loadOK bool) (*schemas.GameEvaluation, error) {
	picked := sampleSnapshots(snapshots, evaluationScreenshotCap)

	logJSON, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action log: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(evaluationUserPrompt(string(logJSON), loadOK, len(picked))),
	}
	for _, snap := range picked {
		parts = append(parts, genai.NewPartFromBytes(snap.VisualData, "image/png"))
	}

	text, err := o.invoke(ctx, evaluationSystemPrompt, parts)
	if err != nil {
		o.logger.Warn("Evaluation request failed; using fallback grade.", zap.Error(err))
		return FallbackEvaluation(loadOK), nil
	}

	eval, err := ParseJSONResponse[schemas.GameEvaluation](text)
	if err != nil {
		o.logger.Warn("Evaluation response unparseable; using fallback grade.", zap.Error(err))
		return FallbackEvaluation(loadOK), nil
	}

	eval.PlayabilityScore = clampScore(eval.PlayabilityScore)
	eval.Confidence = clampScore(eval.Confidence)
	o.logger.Info("Evaluation complete.",
		zap.Int("playability_score", eval.PlayabilityScore),
		zap.String("grade", eval.Grade),
	)
	return eval, nil
}

// invoke performs one rate-limited, retried model call.
func (o *Gemini) invoke(ctx context.Context, systemPrompt string, parts []*genai.Part) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", err
	}

	callCtx := ctx
	if o.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.APITimeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: parts},
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(o.cfg.Temperature),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		},
	}
	if o.cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(o.cfg.MaxTokens)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second
	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(o.cfg.MaxRetries)), callCtx,
	)

	var text string
	operation := func() error {
		start := time.Now()
		result, err := o.gen.generate(callCtx, contents, genCfg)
		if err != nil {
			if callCtx.Err() != nil {
				return backoff.Permanent(err)
			}
			o.logger.Warn("Model request failed, retrying...", zap.Error(err))
			return err
		}
		o.logger.Debug("Model generation complete.",
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_chars", len(result)),
		)
		text = result
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return text, nil
}

// sanitizeAnalysis enforces the output contract on whatever the model sent.
func sanitizeAnalysis(a *schemas.GameAnalysis) {
	if len(a.SuggestedActions) == 0 {
		a.SuggestedActions = FallbackAnalysis().SuggestedActions
	}
	for i := range a.SuggestedActions {
		if a.SuggestedActions[i].Verb == "" {
			a.SuggestedActions[i].Verb = schemas.VerbClick
		}
		if a.SuggestedActions[i].Target == "" {
			a.SuggestedActions[i].Target = "canvas"
		}
	}
	a.InteractivityScore = clampScore(a.InteractivityScore)
}

// sampleSnapshots picks up to max snapshots evenly spread across the run,
// always keeping the first and the last.
func sampleSnapshots(snapshots []schemas.Snapshot, max int) []schemas.Snapshot {
	if len(snapshots) <= max {
		return snapshots
	}
	picked := make([]schemas.Snapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		picked = append(picked, snapshots[int(float64(i)*step+0.5)])
	}
	return picked
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
