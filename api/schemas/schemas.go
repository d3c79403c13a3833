package schemas

import "time"

// ActionVerb is the abstract input gesture the oracle asks for.
type ActionVerb string

const (
	VerbClick    ActionVerb = "click"
	VerbPressKey ActionVerb = "press-key"
	VerbHover    ActionVerb = "hover"
	VerbScroll   ActionVerb = "scroll"
	VerbDrag     ActionVerb = "drag"
)

// Outcome is the terminal verdict of a test run.
type Outcome string

const (
	OutcomeSuccess        Outcome = "SUCCESS"
	OutcomePartialSuccess Outcome = "PARTIAL_SUCCESS"
	OutcomeFailure        Outcome = "FAILURE"
)

// Snapshot pairs a viewport screenshot with the DOM serialization captured at
// the same instant. Immutable once created; the run owns an append-only,
// time-ordered sequence of them.
type Snapshot struct {
	ID         string    `json:"id"`
	Label      string    `json:"label"`
	VisualData []byte    `json:"visual_data"`
	DOMText    string    `json:"dom_text,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// ActionSuggestion is one abstract action proposed by the oracle. The target
// is free text; the action executor classifies it before dispatch.
type ActionSuggestion struct {
	Verb      ActionVerb `json:"action"`
	Target    string     `json:"target"`
	Rationale string     `json:"reason"`
}

// ActionRecord is the append-only log entry for one attempted action.
type ActionRecord struct {
	Iteration         int        `json:"iteration"`
	Verb              ActionVerb `json:"action"`
	Target            string     `json:"target"`
	Rationale         string     `json:"reason"`
	Succeeded         bool       `json:"succeeded"`
	CausedStateChange bool       `json:"caused_state_change"`
}

// GameAnalysis is the oracle's read of a single snapshot: what it sees and
// what it wants tried next.
type GameAnalysis struct {
	DetectedElements   []string           `json:"detectedElements"`
	SuggestedActions   []ActionSuggestion `json:"suggestedActions"`
	VisualAssessment   string             `json:"visualAssessment"`
	InteractivityScore int                `json:"interactivityScore"`
}

// IssueSeverity grades a quality issue found during evaluation.
type IssueSeverity string

const (
	IssueCritical IssueSeverity = "critical"
	IssueMajor    IssueSeverity = "major"
	IssueMinor    IssueSeverity = "minor"
)

// QualityIssue is a single defect the evaluator calls out.
type QualityIssue struct {
	Severity    IssueSeverity `json:"severity"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Confidence  int           `json:"confidence"`
}

// ScoreComponents breaks the playability score into its dimensions.
type ScoreComponents struct {
	Visual      int `json:"visual"`
	Stability   int `json:"stability"`
	Interaction int `json:"interaction"`
	Load        int `json:"load"`
}

// GameEvaluation is the oracle's quality verdict over a whole run.
type GameEvaluation struct {
	PlayabilityScore int             `json:"playabilityScore"`
	Grade            string          `json:"grade"`
	Confidence       int             `json:"confidence"`
	ScoreComponents  ScoreComponents `json:"scoreComponents"`
	Reasoning        string          `json:"reasoning"`
	Issues           []QualityIssue  `json:"issues"`
}

// RunOptions is the caller-supplied options bag for one run.
type RunOptions struct {
	// Timeout bounds initial navigation. Zero means the configured default.
	Timeout time.Duration
	// SnapshotBudget caps how many snapshots a run may accumulate.
	// Zero means the configured default.
	SnapshotBudget int
}

// RunResult is the terminal, immutable artifact of one orchestrated run.
// It is returned by value; the runner never persists it itself.
type RunResult struct {
	RunID          string         `json:"run_id"`
	GameURL        string         `json:"game_url"`
	Snapshots      []Snapshot      `json:"snapshots"`
	ActionLog      []ActionRecord  `json:"action_log"`
	OracleAnalyses []GameAnalysis  `json:"oracle_analyses"`
	Evaluation     *GameEvaluation `json:"evaluation,omitempty"`
	Duration       time.Duration  `json:"duration"`
	Outcome        Outcome        `json:"outcome"`
	FailureReason  string         `json:"failure_reason,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Failed reports whether the run ended in failure.
func (r *RunResult) Failed() bool {
	return r.Outcome == OutcomeFailure
}

// RunSummary is the listing view of a stored run, without its evidence.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	GameURL   string        `json:"game_url"`
	Outcome   Outcome       `json:"outcome"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// BoardState is the structural read of a grid/board game used by the
// completion check and the cell-click strategy.
type BoardState struct {
	FilledCount    int  `json:"filledCount"`
	TotalCells     int  `json:"totalCells"`
	HasWinClass    bool `json:"hasWinClass"`
	RestartVisible bool `json:"restartVisible"`
	AllFilled      bool `json:"allFilled"`
}

// Complete reports whether the board itself signals a finished round.
func (b BoardState) Complete() bool {
	return b.AllFilled || b.HasWinClass || b.RestartVisible
}
