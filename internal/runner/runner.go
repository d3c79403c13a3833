// File: internal/runner/runner.go
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/actions"
	"github.com/xkilldash9x/playcheck-cli/internal/config"
	"github.com/xkilldash9x/playcheck-cli/internal/oracle"
)

// Recovery tears down and relaunches the browser target. The runner calls it
// when the page stops answering; the driver must be valid again afterwards.
type Recovery func(ctx context.Context) error

// Runner orchestrates one full test session: navigate, observe, act on the
// oracle's suggestions, detect progress through state fingerprints, recover
// from stuck states, and terminate with a deterministic verdict.
type Runner struct {
	driver  schemas.PageDriver
	oracle  schemas.Oracle
	exec    *actions.Executor
	cfg     config.RunnerConfig
	sink    schemas.ProgressSink
	logger  *zap.Logger
	recover Recovery
}

// Option customizes a Runner.
type Option func(*Runner)

// WithProgressSink routes the run's event stream to sink.
func WithProgressSink(sink schemas.ProgressSink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithRecovery enables browser relaunch when the target dies mid-run.
func WithRecovery(rec Recovery) Option {
	return func(r *Runner) { r.recover = rec }
}

// New creates a Runner.
func New(driver schemas.PageDriver, orc schemas.Oracle, exec *actions.Executor, cfg config.RunnerConfig, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		driver: driver,
		oracle: orc,
		exec:   exec,
		cfg:    cfg,
		sink:   schemas.NopSink{},
		logger: logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runState is the mutable bookkeeping of one run.
type runState struct {
	result *schemas.RunResult
	budget int

	lastFP         string
	noChangeStreak int
	stuckRetries   int
	replays        int
	restarts       int
	totalActions   int

	completed     bool
	terminalStuck bool
}

func (st *runState) changeCount() int {
	n := 0
	for _, rec := range st.result.ActionLog {
		if rec.CausedStateChange {
			n++
		}
	}
	return n
}

// Run executes one full session against gameURL. The returned RunResult is
// complete even for failed runs; the error is non-nil only when the caller's
// context ended before a verdict could be formed. An overall run deadline
// from the configuration bounds the whole session; exceeding it fails the
// run with a timeout reason instead of surfacing an error.
func (r *Runner) Run(parent context.Context, gameURL string, opts schemas.RunOptions) (*schemas.RunResult, error) {
	ctx := parent
	if r.cfg.MaxRunDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, r.cfg.MaxRunDuration)
		defer cancel()
	}

	navTimeout := r.cfg.NavigationTimeout
	if opts.Timeout > 0 {
		navTimeout = opts.Timeout
	}
	budget := r.cfg.SnapshotBudget
	if opts.SnapshotBudget > 0 {
		budget = opts.SnapshotBudget
	}

	st := &runState{
		result: &schemas.RunResult{
			RunID:     uuid.NewString(),
			GameURL:   gameURL,
			StartedAt: time.Now(),
		},
		budget: budget,
	}
	log := r.logger.With(zap.String("run_id", st.result.RunID), zap.String("game_url", gameURL))
	log.Info("Starting test session.")
	r.emit(st, schemas.ProgressEvent{Kind: schemas.EventSessionStarted, Message: gameURL})

	if err := r.driver.Navigate(ctx, gameURL, navTimeout); err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		reason := fmt.Sprintf("navigation failed: %v", err)
		if ctx.Err() != nil {
			reason = fmt.Sprintf("run deadline of %s exceeded during navigation", r.cfg.MaxRunDuration)
		}
		log.Error("Game failed to load.", zap.Error(err))
		r.captureSnapshot(parent, st, "load-failure")
		return r.finish(parent, st, false, reason), nil
	}
	r.emit(st, schemas.ProgressEvent{Kind: schemas.EventPageReady})

	// Give the game time to initialize, sweep blocking overlays out of the
	// way, and seed keyboard focus on the rendering surface before the
	// baseline observation.
	r.wait(ctx, r.cfg.InitialWait)
	r.exec.DismissOverlays(ctx)
	r.exec.ActivateSurface(ctx)
	r.wait(ctx, r.cfg.SettleWait)
	r.captureSnapshot(ctx, st, "initial")
	st.lastFP = r.fingerprint(ctx)

iterations:
	for iter := 1; iter <= r.cfg.MaxIterations; iter++ {
		if ctx.Err() != nil {
			break
		}
		if st.totalActions >= r.cfg.MaxTotalActions {
			log.Info("Total action cap reached.", zap.Int("actions", st.totalActions))
			break
		}

		if !r.driver.Healthy(ctx) {
			if !r.recoverSession(ctx, st, gameURL, navTimeout) {
				return r.finish(ctx, st, true, "browser target became unresponsive"), nil
			}
		}

		analysis := r.analyze(ctx, st, iter)
		suggestions := analysis.SuggestedActions
		if len(suggestions) > r.cfg.ActionsPerIteration {
			suggestions = suggestions[:r.cfg.ActionsPerIteration]
		}

		for _, s := range suggestions {
			if ctx.Err() != nil {
				break iterations
			}
			if st.totalActions >= r.cfg.MaxTotalActions {
				continue iterations
			}

			r.performAndObserve(ctx, st, iter, s)

			if st.noChangeStreak >= r.cfg.StuckThreshold {
				r.emit(st, schemas.ProgressEvent{
					Kind:      schemas.EventStuckDetected,
					Iteration: iter,
					Message:   fmt.Sprintf("%d consecutive actions without a state change", st.noChangeStreak),
				})
				st.stuckRetries++
				st.noChangeStreak = 0

				if st.stuckRetries <= r.cfg.MaxStuckRetries {
					// Fresh oracle analysis with a longer post-action wait.
					log.Warn("Stuck state detected; requesting re-analysis.",
						zap.Int("stuck_retries", st.stuckRetries))
					continue iterations
				}

				// Suggestions are exhausted; throw the exploratory battery
				// at the page as a last resort.
				log.Warn("Stuck retries exhausted; running exploratory battery.")
				r.exec.Exploratory(ctx)
				r.wait(ctx, r.cfg.ExtendedWait)
				if fp := r.fingerprint(ctx); fp != st.lastFP {
					st.lastFP = fp
					st.stuckRetries = 0
					r.captureSnapshot(ctx, st, fmt.Sprintf("exploratory-iteration-%d", iter))
					continue iterations
				}
				st.terminalStuck = true
				break iterations
			}
		}

		// Structural and textual completion signals are independent; either
		// one on its own ends the round.
		if board := r.readBoard(ctx); board.Complete() || textualCompletion(analysis) {
			log.Info("Game round complete.",
				zap.Int("filled", board.FilledCount),
				zap.Bool("win_class", board.HasWinClass),
				zap.Bool("restart_visible", board.RestartVisible))
			st.completed = true

			// A visible restart control earns another round, up to the cap;
			// exercising the replay path catches reset bugs a single round
			// cannot.
			if board.RestartVisible && st.restarts < r.cfg.RestartCap {
				st.restarts++
				log.Info("Restart control visible; playing another round.",
					zap.Int("round", st.restarts+1))
				if err := r.exec.Perform(ctx, schemas.ActionSuggestion{Verb: schemas.VerbClick, Target: "play again"}); err == nil {
					r.wait(ctx, r.cfg.SettleWait)
					st.lastFP = r.fingerprint(ctx)
					r.captureSnapshot(ctx, st, fmt.Sprintf("replay-%d", st.restarts))
					continue
				}
				log.Debug("Restart click failed; keeping the completed result.")
			}
			break
		}
	}

	r.explore(ctx, st)

	r.wait(ctx, r.cfg.FinalWait)
	r.captureSnapshot(parent, st, "final")

	var failureReason string
	if ctx.Err() != nil && parent.Err() == nil {
		failureReason = fmt.Sprintf("run deadline of %s exceeded", r.cfg.MaxRunDuration)
	}
	return r.finish(parent, st, true, failureReason), nil
}

// explore fires the fixed gesture battery once the main loop ends, capturing
// the page after each one. Extra inputs after the verdict-relevant part of
// the session surface reactions the oracle's suggestions never triggered.
// Capturing stops one snapshot short of the budget so the final capture
// always fits.
func (r *Runner) explore(ctx context.Context, st *runState) {
	for _, step := range r.exec.Battery() {
		if ctx.Err() != nil {
			return
		}
		if len(st.result.Snapshots) >= st.budget-1 {
			r.logger.Debug("Snapshot budget nearly exhausted; ending exploration.",
				zap.String("step", step.Name))
			return
		}
		if err := step.Run(ctx); err != nil {
			r.logger.Debug("Exploration step failed.",
				zap.String("step", step.Name), zap.Error(err))
			continue
		}
		r.wait(ctx, r.cfg.ExtendedWait)
		r.captureSnapshot(ctx, st, "exploratory-"+step.Name)
	}
}

// analyze captures the current frame and asks the oracle what to try next.
// Oracle trouble degrades to the deterministic fallback suggestions.
func (r *Runner) analyze(ctx context.Context, st *runState, iter int) *schemas.GameAnalysis {
	r.emit(st, schemas.ProgressEvent{Kind: schemas.EventOracleInvoked, Iteration: iter})

	var analysis *schemas.GameAnalysis
	shot, err := r.driver.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Screenshot for analysis failed; using fallback suggestions.", zap.Error(err))
		analysis = oracle.FallbackAnalysis()
	} else {
		domText, _ := r.driver.DOMText(ctx)
		analysis, err = r.oracle.SuggestActions(ctx, shot, domText, iter)
		if err != nil || analysis == nil {
			r.logger.Warn("Oracle analysis failed; using fallback suggestions.", zap.Error(err))
			analysis = oracle.FallbackAnalysis()
		}
	}

	st.result.OracleAnalyses = append(st.result.OracleAnalyses, *analysis)
	r.emit(st, schemas.ProgressEvent{
		Kind:      schemas.EventOracleResult,
		Iteration: iter,
		Message:   analysis.VisualAssessment,
	})
	return analysis
}

// performAndObserve executes one suggestion and decides whether it moved the
// game. The extended re-check covers games that animate before committing a
// state change.
func (r *Runner) performAndObserve(ctx context.Context, st *runState, iter int, s schemas.ActionSuggestion) {
	err := r.exec.Perform(ctx, s)
	succeeded := err == nil
	if err != nil {
		r.logger.Warn("Action dispatch failed.",
			zap.String("verb", string(s.Verb)), zap.String("target", s.Target), zap.Error(err))
	}

	// Stuck rounds earn progressively longer waits before judging.
	r.wait(ctx, r.cfg.BaseActionWait+time.Duration(st.stuckRetries)*r.cfg.StuckWaitIncrement)

	fp := r.fingerprint(ctx)
	changed := fp != st.lastFP
	if !changed && r.cfg.ExtendedWait > 0 {
		r.wait(ctx, r.cfg.ExtendedWait)
		fp = r.fingerprint(ctx)
		changed = fp != st.lastFP
	}

	rec := schemas.ActionRecord{
		Iteration:         iter,
		Verb:              s.Verb,
		Target:            s.Target,
		Rationale:         s.Rationale,
		Succeeded:         succeeded,
		CausedStateChange: changed,
	}
	st.result.ActionLog = append(st.result.ActionLog, rec)
	st.totalActions++
	r.emit(st, schemas.ProgressEvent{
		Kind:      schemas.EventActionAttempted,
		Iteration: iter,
		Action:    &rec,
	})

	if !changed {
		st.noChangeStreak++
		return
	}

	st.noChangeStreak = 0
	st.lastFP = fp
	r.captureSnapshot(ctx, st, fmt.Sprintf("iteration-%d-action-%d", iter, st.totalActions))

	// In turn-based games the opponent replies after our move lands; watch
	// for that second change so it is not misread as our next action's.
	if board := r.readBoard(ctx); board.TotalCells >= 2 && !board.Complete() {
		r.pollOpponent(ctx, st)
	}
}

// pollOpponent watches for a follow-up state change after ours registered.
func (r *Runner) pollOpponent(ctx context.Context, st *runState) {
	for i := 0; i < r.cfg.OpponentPollCount; i++ {
		if ctx.Err() != nil {
			return
		}
		r.wait(ctx, r.cfg.OpponentPollEvery)
		if fp := r.fingerprint(ctx); fp != st.lastFP {
			st.lastFP = fp
			r.captureSnapshot(ctx, st, "opponent-move")
			return
		}
	}
}

// recoverSession relaunches the browser and replays the run's effective
// actions to restore progress. Bounded by the replay cap; repeated deaths
// end the run instead of looping forever.
func (r *Runner) recoverSession(ctx context.Context, st *runState, gameURL string, navTimeout time.Duration) bool {
	if r.recover == nil || st.replays >= r.cfg.ReplayCap {
		return false
	}
	st.replays++
	r.logger.Warn("Browser target unresponsive; relaunching.",
		zap.Int("attempt", st.replays), zap.Int("cap", r.cfg.ReplayCap))

	if err := r.recover(ctx); err != nil {
		r.logger.Error("Browser relaunch failed.", zap.Error(err))
		return false
	}
	if err := r.driver.Navigate(ctx, gameURL, navTimeout); err != nil {
		r.logger.Error("Re-navigation after relaunch failed.", zap.Error(err))
		return false
	}
	r.wait(ctx, r.cfg.InitialWait)
	r.exec.DismissOverlays(ctx)

	// Replay the actions that previously moved the game, so the session
	// resumes near where it died rather than from scratch.
	for _, rec := range st.result.ActionLog {
		if !rec.Succeeded || !rec.CausedStateChange {
			continue
		}
		if err := r.exec.Perform(ctx, schemas.ActionSuggestion{Verb: rec.Verb, Target: rec.Target}); err != nil {
			r.logger.Debug("Replay action failed.", zap.String("target", rec.Target), zap.Error(err))
		}
		r.wait(ctx, r.cfg.ExtendedWait)
	}
	st.lastFP = r.fingerprint(ctx)

	r.emit(st, schemas.ProgressEvent{
		Kind:    schemas.EventSessionRecovered,
		Message: fmt.Sprintf("relaunch %d of %d", st.replays, r.cfg.ReplayCap),
	})
	return true
}

// finish forms the verdict, runs the quality evaluation, and seals the result.
func (r *Runner) finish(ctx context.Context, st *runState, loadOK bool, failureReason string) *schemas.RunResult {
	res := st.result

	if ctx.Err() == nil {
		if eval, err := r.oracle.EvaluateQuality(ctx, res.Snapshots, res.ActionLog, loadOK); err == nil {
			res.Evaluation = eval
		} else {
			r.logger.Warn("Quality evaluation failed.", zap.Error(err))
		}
	}

	changes := st.changeCount()
	switch {
	case !loadOK:
		res.Outcome = schemas.OutcomeFailure
		res.FailureReason = failureReason
	case failureReason != "":
		res.Outcome = schemas.OutcomeFailure
		res.FailureReason = failureReason
	case st.completed:
		res.Outcome = schemas.OutcomeSuccess
	case changes > 0:
		res.Outcome = schemas.OutcomePartialSuccess
	case st.terminalStuck:
		res.Outcome = schemas.OutcomeFailure
		res.FailureReason = "game never responded to any interaction"
	default:
		res.Outcome = schemas.OutcomeFailure
		res.FailureReason = "no action changed the game state"
	}

	res.FinishedAt = time.Now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	r.emit(st, schemas.ProgressEvent{
		Kind:    schemas.EventRunFinished,
		Outcome: res.Outcome,
		Message: res.FailureReason,
	})
	r.logger.Info("Test session finished.",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("actions", len(res.ActionLog)),
		zap.Int("state_changes", changes),
		zap.Int("snapshots", len(res.Snapshots)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// captureSnapshot appends a screenshot+DOM pair, respecting the budget.
func (r *Runner) captureSnapshot(ctx context.Context, st *runState, label string) {
	if len(st.result.Snapshots) >= st.budget {
		r.logger.Debug("Snapshot budget exhausted; skipping capture.", zap.String("label", label))
		return
	}
	shot, err := r.driver.Screenshot(ctx)
	if err != nil {
		r.logger.Debug("Snapshot capture failed.", zap.String("label", label), zap.Error(err))
		return
	}
	domText, _ := r.driver.DOMText(ctx)

	snap := schemas.Snapshot{
		ID:         uuid.NewString(),
		Label:      label,
		VisualData: shot,
		DOMText:    domText,
		CapturedAt: time.Now(),
	}
	st.result.Snapshots = append(st.result.Snapshots, snap)
	r.emit(st, schemas.ProgressEvent{
		Kind:          schemas.EventSnapshotCaptured,
		SnapshotID:    snap.ID,
		SnapshotLabel: label,
		SnapshotIndex: len(st.result.Snapshots),
		SnapshotTotal: st.budget,
	})
}

// emit stamps and delivers one progress event.
func (r *Runner) emit(st *runState, ev schemas.ProgressEvent) {
	ev.RunID = st.result.RunID
	ev.Timestamp = time.Now()
	r.sink.Emit(ev)
}

// wait sleeps for d or until ctx ends, whichever comes first.
func (r *Runner) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
