package solver

import (
	"context"

	"github.com/looplab/fsm"
)

// State of a proof session.
type State string

const (
	StateIdle    State = "idle"
	StateValid   State = "valid"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

const (
	eventValidate = "validate"
	eventSucceed  = "succeed"
	eventFail     = "fail"
)

// Workflow follows one proof from request to on-chain submission:
// Idle -> Valid -> Success, with Failed reachable from Idle and Valid.
type Workflow struct {
	fsm *fsm.FSM
}

func NewWorkflow() *Workflow {
	return &Workflow{
		fsm: fsm.NewFSM(
			string(StateIdle),
			fsm.Events{
				{Name: eventValidate, Src: []string{string(StateIdle)}, Dst: string(StateValid)},
				{Name: eventSucceed, Src: []string{string(StateValid)}, Dst: string(StateSuccess)},
				{Name: eventFail, Src: []string{string(StateIdle), string(StateValid)}, Dst: string(StateFailed)},
			},
			fsm.Callbacks{},
		),
	}
}

func (w *Workflow) Current() State { return State(w.fsm.Current()) }

func (w *Workflow) Validate(ctx context.Context) error { return w.fsm.Event(ctx, eventValidate) }

func (w *Workflow) Succeed(ctx context.Context) error { return w.fsm.Event(ctx, eventSucceed) }

func (w *Workflow) Fail(ctx context.Context) error { return w.fsm.Event(ctx, eventFail) }

func (w *Workflow) Done() bool {
	s := w.Current()
	return s == StateSuccess || s == StateFailed
}
