package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xkilldash9x/playcheck-cli/api/schemas"
	"github.com/xkilldash9x/playcheck-cli/internal/mocks"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStartEventConsumer(t *testing.T) {
	defer goleak.VerifyNone(t)

	logger := zap.NewNop()

	t.Run("ForwardsEventsToExtraSinks", func(t *testing.T) {
		events := make(chan schemas.ProgressEvent, 16)
		wg := &sync.WaitGroup{}
		recorder := &mocks.SinkRecorder{}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		StartEventConsumer(ctx, wg, events, logger, recorder)

		events <- schemas.ProgressEvent{Kind: schemas.EventSessionStarted, RunID: "run-1"}
		events <- schemas.ProgressEvent{Kind: schemas.EventPageReady, RunID: "run-1"}
		events <- schemas.ProgressEvent{Kind: schemas.EventRunFinished, RunID: "run-1", Outcome: schemas.OutcomeSuccess}
		close(events)
		wg.Wait()

		assert.Equal(t, []schemas.EventKind{
			schemas.EventSessionStarted,
			schemas.EventPageReady,
			schemas.EventRunFinished,
		}, recorder.Kinds())
	})

	t.Run("DrainsBufferedEventsOnContextCancel", func(t *testing.T) {
		events := make(chan schemas.ProgressEvent, 16)
		wg := &sync.WaitGroup{}
		recorder := &mocks.SinkRecorder{}
		ctx, cancel := context.WithCancel(context.Background())

		events <- schemas.ProgressEvent{Kind: schemas.EventSnapshotCaptured}
		events <- schemas.ProgressEvent{Kind: schemas.EventRunFinished}
		cancel()

		StartEventConsumer(ctx, wg, events, logger, recorder)
		wg.Wait()

		assert.Len(t, recorder.Kinds(), 2, "buffered events survive cancellation")
	})
}

func TestLogEvent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	logEvent(log, schemas.ProgressEvent{
		Kind:    schemas.EventRunFinished,
		RunID:   "run-42",
		Outcome: schemas.OutcomeFailure,
		Message: "navigation failed: timeout",
	})

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "run-42", fields["run_id"])
	assert.Equal(t, string(schemas.OutcomeFailure), fields["outcome"])

	logs.TakeAll()
	logEvent(log, schemas.ProgressEvent{Kind: schemas.EventStuckDetected, RunID: "run-42", Iteration: 2})
	entries = logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, 2, entries[0].ContextMap()["iteration"])
}

func TestChannelSinkDoesNotBlockWhenFull(t *testing.T) {
	ch := make(chan schemas.ProgressEvent, 1)
	sink := channelSink(ch)

	done := make(chan struct{})
	go func() {
		sink.Emit(schemas.ProgressEvent{Kind: schemas.EventPageReady})
		sink.Emit(schemas.ProgressEvent{Kind: schemas.EventRunFinished}) // dropped
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("channel sink blocked on a full channel")
	}

	ev := <-ch
	assert.Equal(t, schemas.EventPageReady, ev.Kind)
	assert.Empty(t, ch)
}
