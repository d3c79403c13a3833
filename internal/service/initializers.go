// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// StartEventConsumer launches a goroutine that reads run progress events from
// the channel, logs them, and forwards them to any extra sinks. It manages its
// lifecycle using the provided WaitGroup and drains the channel on shutdown so
// late events are never silently lost.
func StartEventConsumer(ctx context.Context, wg *sync.WaitGroup, events <-chan schemas.ProgressEvent, logger *zap.Logger, extraSinks ...schemas.ProgressSink) {
	log := logger.Named("events")
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Debug("Event consumer goroutine started.")
		defer log.Debug("Event consumer goroutine shut down.")

		process := func(ev schemas.ProgressEvent) {
			logEvent(log, ev)
			for _, sink := range extraSinks {
				sink.Emit(ev)
			}
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					// Channel closed (graceful shutdown via Components.Shutdown).
					return
				}
				process(ev)

			case <-ctx.Done():
				// Context canceled (e.g. Ctrl-C). Drain whatever is buffered
				// before exiting so the final events still reach the log.
				for {
					select {
					case ev, ok := <-events:
						if !ok {
							return
						}
						process(ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// logEvent maps one progress event to a structured log line.
func logEvent(log *zap.Logger, ev schemas.ProgressEvent) {
	fields := []zap.Field{zap.String("run_id", ev.RunID)}
	if ev.Iteration > 0 {
		fields = append(fields, zap.Int("iteration", ev.Iteration))
	}

	switch ev.Kind {
	case schemas.EventSessionStarted:
		log.Info("Session started.", append(fields, zap.String("game_url", ev.Message))...)
	case schemas.EventPageReady:
		log.Info("Page ready.", fields...)
	case schemas.EventSnapshotCaptured:
		log.Debug("Snapshot captured.", append(fields,
			zap.String("snapshot_id", ev.SnapshotID),
			zap.String("label", ev.SnapshotLabel),
			zap.String("progress", fmt.Sprintf("%d/%d", ev.SnapshotIndex, ev.SnapshotTotal)))...)
	case schemas.EventActionAttempted:
		if ev.Action != nil {
			fields = append(fields,
				zap.String("action", string(ev.Action.Verb)),
				zap.String("target", ev.Action.Target),
				zap.Bool("state_change", ev.Action.CausedStateChange))
		}
		log.Info("Action attempted.", fields...)
	case schemas.EventOracleInvoked:
		log.Debug("Oracle invoked.", fields...)
	case schemas.EventOracleResult:
		log.Debug("Oracle responded.", append(fields, zap.String("assessment", ev.Message))...)
	case schemas.EventStuckDetected:
		log.Warn("Stuck state detected.", append(fields, zap.String("detail", ev.Message))...)
	case schemas.EventSessionRecovered:
		log.Warn("Session recovered after browser relaunch.", append(fields, zap.String("detail", ev.Message))...)
	case schemas.EventRunFinished:
		log.Info("Run finished.", append(fields,
			zap.String("outcome", string(ev.Outcome)),
			zap.String("failure_reason", ev.Message))...)
	default:
		log.Debug("Progress event.", append(fields, zap.String("kind", string(ev.Kind)))...)
	}
}
