package checkout

import (
	"context"

	"github.com/looplab/fsm"
)

// State of one checkout attempt.
type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	// StatePending means the transaction was broadcast but not confirmed.
	StatePending State = "pending"
)

const (
	eventSend    = "send"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventPending = "pending"
)

// Workflow tracks a single checkout. It moves Idle -> Sending and then to
// one of the terminal states; there is no retry from a terminal state.
type Workflow struct {
	fsm *fsm.FSM
}

func NewWorkflow() *Workflow {
	return &Workflow{
		fsm: fsm.NewFSM(
			string(StateIdle),
			fsm.Events{
				{Name: eventSend, Src: []string{string(StateIdle)}, Dst: string(StateSending)},
				{Name: eventSucceed, Src: []string{string(StateSending)}, Dst: string(StateSuccess)},
				{Name: eventFail, Src: []string{string(StateSending)}, Dst: string(StateFailed)},
				{Name: eventPending, Src: []string{string(StateSending)}, Dst: string(StatePending)},
			},
			fsm.Callbacks{},
		),
	}
}

func (w *Workflow) Current() State { return State(w.fsm.Current()) }

// Send marks the transaction as submitted.
func (w *Workflow) Send(ctx context.Context) error { return w.fsm.Event(ctx, eventSend) }

func (w *Workflow) Succeed(ctx context.Context) error { return w.fsm.Event(ctx, eventSucceed) }

func (w *Workflow) Fail(ctx context.Context) error { return w.fsm.Event(ctx, eventFail) }

func (w *Workflow) Pending(ctx context.Context) error { return w.fsm.Event(ctx, eventPending) }

// Done reports whether the workflow reached a terminal state.
func (w *Workflow) Done() bool {
	s := w.Current()
	return s == StateSuccess || s == StateFailed || s == StatePending
}
