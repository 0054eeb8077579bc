package run

import (
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/pkg/errors"
)

// transitions lists the forward edges of a run. Failed is reachable from
// every non-terminal state and is handled by fail.
var transitions = map[model.RunState]model.RunState{
	model.StateIdle:        model.StateConnecting,
	model.StateConnecting:  model.StateScanning,
	model.StateScanning:    model.StateClassifying,
	model.StateClassifying: model.StateApplying,
	model.StateApplying:    model.StateCommitting,
	model.StateCommitting:  model.StateDone,
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to model.RunState) bool {
	if from.Terminal() {
		return false
	}
	if to == model.StateFailed {
		return true
	}
	return transitions[from] == to
}

type cycle struct {
	state    model.RunState
	failedIn model.RunState
	summary  model.RunSummary
}

func (c *cycle) advance(to model.RunState) error {
	if !CanTransition(c.state, to) {
		return errors.Errorf("invalid run transition %s -> %s", c.state, to)
	}
	c.state = to
	c.summary.FinalState = to
	return nil
}

func (c *cycle) fail(err error) {
	c.failedIn = c.state
	if !c.state.Terminal() {
		c.state = model.StateFailed
	}
	c.summary.FinalState = model.StateFailed
	c.summary.Error = err.Error()
}
