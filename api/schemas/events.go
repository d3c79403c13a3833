package schemas

import "time"

// EventKind identifies a progress event on the run's ordered stream.
type EventKind string

const (
	EventSessionStarted   EventKind = "session-started"
	EventPageReady        EventKind = "page-ready"
	EventSnapshotCaptured EventKind = "snapshot-captured"
	EventActionAttempted  EventKind = "action-attempted"
	EventOracleInvoked    EventKind = "oracle-invoked"
	EventOracleResult     EventKind = "oracle-result"
	EventStuckDetected    EventKind = "stuck-detected"
	EventSessionRecovered EventKind = "session-recovered"
	EventRunFinished      EventKind = "run-finished"
)

// ProgressEvent is one entry on a run's event stream. Only the fields that
// make sense for the Kind are populated.
type ProgressEvent struct {
	Kind      EventKind `json:"kind"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Iteration int       `json:"iteration,omitempty"`
	Message   string    `json:"message,omitempty"`

	// Snapshot metadata, set on snapshot-captured. Index counts captures so
	// far; Total is the run's snapshot budget, so consumers can render
	// running progress.
	SnapshotID    string `json:"snapshot_id,omitempty"`
	SnapshotLabel string `json:"snapshot_label,omitempty"`
	SnapshotIndex int    `json:"snapshot_index,omitempty"`
	SnapshotTotal int    `json:"snapshot_total,omitempty"`

	// Action detail, set on action-attempted.
	Action *ActionRecord `json:"action,omitempty"`

	// Terminal verdict, set on run-finished.
	Outcome Outcome `json:"outcome,omitempty"`
}
