package partcache

import "sync"

// MockObserver is a test double for Observer: it records every event it
// receives instead of forwarding to a Metrics instance, so tests can assert
// on exactly what the command/conn layers reported without needing go
// histogram math. Grounded on the teacher's MockBackend call-tracking shape
// (counters plus Reset/CallCounts helpers), adapted from mocking block I/O
// to mocking the observability sink.
type MockObserver struct {
	mu sync.Mutex

	commands    []MockCommandEvent
	getHitBytes []uint64
	getMisses   int
	evictions   []uint64
	connOpens   int
	connCloses  int
}

// MockCommandEvent records one ObserveCommand call.
type MockCommandEvent struct {
	Cmd       string
	LatencyNs uint64
	Success   bool
}

// NewMockObserver creates an empty MockObserver.
func NewMockObserver() *MockObserver {
	return &MockObserver{}
}

func (m *MockObserver) ObserveCommand(cmd string, latencyNs uint64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, MockCommandEvent{Cmd: cmd, LatencyNs: latencyNs, Success: success})
}

func (m *MockObserver) ObserveGetHit(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getHitBytes = append(m.getHitBytes, bytes)
}

func (m *MockObserver) ObserveGetMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getMisses++
}

func (m *MockObserver) ObserveEviction(bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictions = append(m.evictions, bytes)
}

func (m *MockObserver) ObserveConnOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connOpens++
}

func (m *MockObserver) ObserveConnClose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connCloses++
}

// Commands returns a copy of every ObserveCommand call recorded so far.
func (m *MockObserver) Commands() []MockCommandEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCommandEvent, len(m.commands))
	copy(out, m.commands)
	return out
}

// CallCounts returns how many times each Observe method fired, for
// assertions that only care about counts rather than payloads.
func (m *MockObserver) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"commands":   len(m.commands),
		"get_hits":   len(m.getHitBytes),
		"get_misses": m.getMisses,
		"evictions":  len(m.evictions),
		"conn_opens": m.connOpens,
		"conn_closes": m.connCloses,
	}
}

// Reset clears all recorded events.
func (m *MockObserver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
	m.getHitBytes = nil
	m.getMisses = 0
	m.evictions = nil
	m.connOpens = 0
	m.connCloses = 0
}

var _ Observer = (*MockObserver)(nil)
