package cache

import (
	"sync"

	"github.com/coreware-labs/partcache/internal/combiner"
)

// Engine serializes access to one partition. Exactly one of the three
// implementations below is active for a given build/config, per spec.md
// §4.7's "concurrency isolation (choose one at build time)" — all three
// give callers the same observable semantics: fn runs with exclusive
// access to the partition.
type Engine interface {
	Execute(fn func())
}

// CombinerEngine serializes access through a flat-combining executor
// (internal/combiner), matching spec.md §4.7's "(a) combiner" strategy.
type CombinerEngine struct {
	c *combiner.Combiner[func()]
}

// NewCombinerEngine builds a combiner-backed Engine with the given ring
// size and handoff bound (spec.md §4.2's tunables).
func NewCombinerEngine(ringSize, handoff int) *CombinerEngine {
	e := &CombinerEngine{}
	e.c = combiner.New(func(fn func()) { fn() }, ringSize, handoff)
	return e
}

func (e *CombinerEngine) Execute(fn func()) { e.c.Execute(fn) }

// LockEngine serializes access with a plain mutex, matching spec.md §4.7's
// "(c) locking" strategy.
type LockEngine struct {
	mu sync.Mutex
}

func NewLockEngine() *LockEngine { return &LockEngine{} }

func (e *LockEngine) Execute(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// DelegateEngine posts fn to the runtime that owns this partition and
// blocks until it has run, matching spec.md §4.7's "(b) delegate" strategy
// ("each partition pinned to one runtime; foreign runtimes post actions").
//
// This blocks the calling goroutine on a channel rather than suspending
// cooperatively via internal/task — a deliberate simplification: a true
// fiber would yield here and resume when the delegate's result lands, but
// doing that would require threading a *task.Task through every call site
// that touches a partition. Documented as an Open Question decision in
// DESIGN.md; callers running on the owning runtime itself should use
// LockEngine or CombinerEngine instead to avoid blocking their own
// scheduler thread on its own post.
type DelegateEngine struct {
	post func(func())
}

// NewDelegateEngine builds a delegate Engine around post, which enqueues fn
// for execution on the partition's owning runtime (typically
// runtime.Runtime.Post wrapped to unwrap the WorkItem).
func NewDelegateEngine(post func(func())) *DelegateEngine {
	return &DelegateEngine{post: post}
}

func (e *DelegateEngine) Execute(fn func()) {
	done := make(chan struct{})
	e.post(func() {
		fn()
		close(done)
	})
	<-done
}
