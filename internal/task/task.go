// Package task implements the cooperative fiber scheduler described in
// spec.md §4.4 (C4): one run queue per runtime, priority-ordered, with
// explicit suspension points (yield, block, wait, waitfirst, timed wait)
// rather than preemption. Go has no stackful-coroutine primitive in the
// standard library, so each Task here is backed by its own goroutine that
// spends almost all of its life parked on a channel receive — the scheduler
// hands it the baton by sending on that channel and does not proceed until
// the task hands the baton back at its next suspension point. Exactly one
// task per runtime holds the baton at a time, so code between suspension
// points is atomic relative to other tasks on the same runtime, matching
// spec.md §6's "single-threaded cooperative" contract even though the
// underlying mechanism is goroutines rather than custom stacks.
//
// Grounded on the task/run-queue shape in original_source/src/core.c and the
// context.Context-based cancellation used by the teacher's
// internal/queue/runner.go (deleted from this tree once its ideas were
// folded in here and into internal/runtime).
package task

import "fmt"

// State is one of the four states a Task may be in.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Priority orders a runtime's run queue. Priorities strictly dominate: every
// High task runs before any Normal task, every Normal before any Idle.
type Priority int

const (
	High Priority = iota
	Normal
	Idle
	numPriorities
)

// WakeReason tells a task why it resumed from a wait.
type WakeReason int

const (
	WakeSignal WakeReason = iota
	WakeTimeout
	WakeCancel
)

// Func is the body of a task. It receives the Task so it can call Yield,
// Block, Wait, Canceled and OnCleanup on itself.
type Func func(t *Task)

// Task is one cooperatively scheduled unit of work.
type Task struct {
	Name     string
	priority Priority
	sched    *Scheduler
	fn       Func

	resume chan WakeReason // scheduler -> task: you have the baton
	state  State

	cancelRequested bool
	cleanups        []func()

	waitQueue   *WaitQueue // non-nil while Blocked on a WaitQueue
	timer       *timerEntry
	pendingWake WakeReason // reason to deliver on the next resume

	// Result is left for the runtime's dealer to inspect after a worker
	// task terminates (spec.md §4.5 worker loop); unused by boot/master/
	// dealer tasks.
	Result any
}

// Priority reports the task's scheduling priority.
func (t *Task) Priority() Priority { return t.priority }

// State reports the task's current state.
func (t *Task) State() State { return t.state }

// Canceled reports whether cancellation has been requested. Task bodies
// should check this at loop tops and unwind (returning from fn) when true;
// registered cleanup handlers run automatically once fn returns.
func (t *Task) Canceled() bool { return t.cancelRequested }

// OnCleanup pushes a cleanup handler onto this task's cleanup stack.
// Handlers run in reverse registration order when the task terminates,
// whether by normal return or after observing cancellation.
func (t *Task) OnCleanup(fn func()) {
	t.cleanups = append(t.cleanups, fn)
}

func (t *Task) runCleanups() {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		t.cleanups[i]()
	}
	t.cleanups = nil
}

// Yield gives up the baton, re-enqueuing this task at the tail of its
// priority's ready queue, and blocks until the scheduler hands the baton
// back.
func (t *Task) Yield() WakeReason {
	t.state = Ready
	t.sched.enqueueReady(t)
	return t.sched.relinquish(t)
}

// Block gives up the baton without re-enqueuing. The task stays Blocked
// until something else (a WaitQueue signal, a timer, or Cancel) re-enqueues
// it.
func (t *Task) Block() WakeReason {
	t.state = Blocked
	return t.sched.relinquish(t)
}

// Cancel marks t for cancellation. The request takes effect at t's next
// suspension point: Yield, Block and Wait all return WakeCancel and the
// waiting task is expected to unwind (return from its Func), which runs its
// registered cleanup handlers in reverse order.
func (t *Task) Cancel() {
	t.cancelRequested = true
	if t.state == Blocked {
		if t.waitQueue != nil {
			t.waitQueue.remove(t)
			t.waitQueue = nil
		}
		if t.timer != nil {
			t.sched.timers.cancel(t.timer)
			t.timer = nil
		}
		t.pendingWake = WakeCancel
		t.sched.enqueueReady(t)
	} else {
		t.pendingWake = WakeCancel
	}
}
