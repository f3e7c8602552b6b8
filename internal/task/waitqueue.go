package task

// WaitQueue is an intrusive FIFO list of blocked tasks, as described in
// spec.md §4.4. Signal wakes the task at the head, Broadcast wakes all of
// them, and WaitFirst lets a caller join at the head instead of the tail
// (used by idle worker tasks so they're handed the next work item ahead of
// any worker the master is about to spawn).
type WaitQueue struct {
	waiters []*Task
}

// NewWaitQueue returns an empty wait queue.
func NewWaitQueue() *WaitQueue { return &WaitQueue{} }

// Wait blocks the calling task at the tail of q until Signal, Broadcast, or
// Cancel wakes it. It has no timeout; WaitTimeout is the timed variant.
func (q *WaitQueue) Wait(t *Task) WakeReason {
	q.waiters = append(q.waiters, t)
	t.waitQueue = q
	return t.Block()
}

// WaitFirst blocks the calling task at the head of q.
func (q *WaitQueue) WaitFirst(t *Task) WakeReason {
	q.waiters = append([]*Task{t}, q.waiters...)
	t.waitQueue = q
	return t.Block()
}

// WaitTimeout blocks like Wait but also arms a timer; if it fires before a
// signal arrives the task wakes with WakeTimeout.
func (q *WaitQueue) WaitTimeout(t *Task, deadlineUnixNano int64) WakeReason {
	q.waiters = append(q.waiters, t)
	t.waitQueue = q
	t.timer = t.sched.timers.arm(t, deadlineUnixNano)
	reason := t.Block()
	if t.timer != nil {
		t.sched.timers.cancel(t.timer)
		t.timer = nil
	}
	return reason
}

func (q *WaitQueue) remove(t *Task) {
	for i, w := range q.waiters {
		if w == t {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
}

// Signal wakes the task at the head of q, if any, returning whether there
// was one.
func (q *WaitQueue) Signal() bool {
	if len(q.waiters) == 0 {
		return false
	}
	t := q.waiters[0]
	q.waiters = q.waiters[1:]
	t.waitQueue = nil
	if t.timer != nil {
		t.sched.timers.cancel(t.timer)
		t.timer = nil
	}
	t.pendingWake = WakeSignal
	t.sched.enqueueReady(t)
	return true
}

// Broadcast wakes every waiting task.
func (q *WaitQueue) Broadcast() {
	for q.Signal() {
	}
}

// Len reports the number of tasks currently waiting.
func (q *WaitQueue) Len() int { return len(q.waiters) }
