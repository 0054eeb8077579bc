package model

import (
	"strings"
	"time"
)

// Descriptor is the header-level view of one message used for classification.
type Descriptor struct {
	UID      uint32
	Subject  string
	Sender   string
	Received time.Time
	Keywords []string
}

// HasKeyword reports whether the message already carries the keyword.
func (d Descriptor) HasKeyword(keyword string) bool {
	for _, k := range d.Keywords {
		if strings.EqualFold(k, keyword) {
			return true
		}
	}
	return false
}

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeSkipped Outcome = "skipped"
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
)

// Reasons recorded on skipped assignments.
const (
	ReasonDuplicate     = "duplicate"
	ReasonOutsideWindow = "outside recent window"
)

// Assignment is the classification decision for one message and what
// became of it.
type Assignment struct {
	UID      uint32  `json:"uid"`
	Subject  string  `json:"subject,omitempty"`
	Label    string  `json:"label,omitempty"`
	Archived bool    `json:"archived"`
	Outcome  Outcome `json:"outcome"`
	Reason   string  `json:"reason,omitempty"`
}

// Fail marks the assignment failed with the given reason.
func (a *Assignment) Fail(reason string) {
	a.Outcome = OutcomeFailed
	a.Reason = reason
}

type RunState string

const (
	StateIdle        RunState = "idle"
	StateConnecting  RunState = "connecting"
	StateScanning    RunState = "scanning"
	StateClassifying RunState = "classifying"
	StateApplying    RunState = "applying"
	StateCommitting  RunState = "committing"
	StateDone        RunState = "done"
	StateFailed      RunState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Insight is the NLP post-processing result for one message.
type Insight struct {
	UID       uint32  `json:"uid"`
	Label     string  `json:"label"`
	Summary   string  `json:"summary,omitempty"`
	Sentiment string  `json:"sentiment,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Err       string  `json:"error,omitempty"`
}

// RunSummary reports the counts and per-message trail of one run.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Folder      string       `json:"folder"`
	DryRun      bool         `json:"dry_run,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Scanned     int          `json:"scanned"`
	Classified  int          `json:"classified"`
	Matched     int          `json:"matched"`
	Labeled     int          `json:"labeled"`
	Archived    int          `json:"archived"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Expunged    int          `json:"expunged"`
	CommitError string       `json:"commit_error,omitempty"`
	FinalState  RunState     `json:"final_state"`
	Error       string       `json:"error,omitempty"`
	Audit       []Assignment `json:"audit"`
	Insights    []Insight    `json:"insights,omitempty"`
}

// Tally recomputes the outcome counters from the audit trail.
func (s *RunSummary) Tally() {
	s.Classified, s.Matched, s.Labeled, s.Archived, s.Skipped, s.Failed = 0, 0, 0, 0, 0, 0
	for _, a := range s.Audit {
		if a.Label != "" {
			s.Classified++
			s.Matched++
		} else if a.Outcome == OutcomeNoMatch {
			s.Classified++
		}
		switch a.Outcome {
		case OutcomeApplied:
			s.Labeled++
			if a.Archived {
				s.Archived++
			}
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		}
	}
}
