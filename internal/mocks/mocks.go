// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/playcheck-cli/api/schemas"
)

// -- PageDriver Mock --

// MockPageDriver mocks schemas.PageDriver for runner and executor tests.
type MockPageDriver struct {
	mock.Mock
}

var _ schemas.PageDriver = (*MockPageDriver)(nil)

func (m *MockPageDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	args := m.Called(ctx, url, timeout)
	return args.Error(0)
}

func (m *MockPageDriver) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPageDriver) DOMText(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPageDriver) Evaluate(ctx context.Context, expr string, out any) error {
	args := m.Called(ctx, expr, out)
	return args.Error(0)
}

func (m *MockPageDriver) Locate(ctx context.Context, q schemas.ElementQuery) (schemas.ElementInfo, error) {
	args := m.Called(ctx, q)
	if info, ok := args.Get(0).(schemas.ElementInfo); ok {
		return info, args.Error(1)
	}
	return schemas.ElementInfo{}, args.Error(1)
}

func (m *MockPageDriver) Click(ctx context.Context, x, y float64) error {
	args := m.Called(ctx, x, y)
	return args.Error(0)
}

func (m *MockPageDriver) Hover(ctx context.Context, x, y float64) error {
	args := m.Called(ctx, x, y)
	return args.Error(0)
}

func (m *MockPageDriver) Drag(ctx context.Context, fromX, fromY, toX, toY float64) error {
	args := m.Called(ctx, fromX, fromY, toX, toY)
	return args.Error(0)
}

func (m *MockPageDriver) PressKey(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockPageDriver) Scroll(ctx context.Context, dx, dy float64) error {
	args := m.Called(ctx, dx, dy)
	return args.Error(0)
}

func (m *MockPageDriver) Healthy(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

// -- Oracle Mock --

// MockOracle mocks schemas.Oracle.
type MockOracle struct {
	mock.Mock
}

var _ schemas.Oracle = (*MockOracle)(nil)

func (m *MockOracle) SuggestActions(ctx context.Context, screenshot []byte, domText string, iteration int) (*schemas.GameAnalysis, error) {
	args := m.Called(ctx, screenshot, domText, iteration)
	if a, ok := args.Get(0).(*schemas.GameAnalysis); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOracle) EvaluateQuality(ctx context.Context, snapshots []schemas.Snapshot, log []schemas.ActionRecord, loadOK bool) (*schemas.GameEvaluation, error) {
	args := m.Called(ctx, snapshots, log, loadOK)
	if e, ok := args.Get(0).(*schemas.GameEvaluation); ok {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Repository Mock --

// MockRepository mocks schemas.Repository.
type MockRepository struct {
	mock.Mock
}

var _ schemas.Repository = (*MockRepository)(nil)

func (m *MockRepository) SaveResult(ctx context.Context, res *schemas.RunResult) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *MockRepository) GetResult(ctx context.Context, runID string) (*schemas.RunResult, error) {
	args := m.Called(ctx, runID)
	if r, ok := args.Get(0).(*schemas.RunResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListResults(ctx context.Context, limit int) ([]schemas.RunSummary, error) {
	args := m.Called(ctx, limit)
	if s, ok := args.Get(0).([]schemas.RunSummary); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Progress Sink Recorder --

// SinkRecorder collects emitted progress events for assertions. Safe for
// concurrent use.
type SinkRecorder struct {
	mu     sync.Mutex
	events []schemas.ProgressEvent
}

var _ schemas.ProgressSink = (*SinkRecorder)(nil)

func (s *SinkRecorder) Emit(ev schemas.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of everything recorded so far.
func (s *SinkRecorder) Events() []schemas.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Kinds returns just the event kinds, in emission order.
func (s *SinkRecorder) Kinds() []schemas.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]schemas.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}
