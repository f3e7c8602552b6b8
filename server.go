// Package partcache implements a partitioned, multi-core, in-memory cache
// server speaking the memcached ASCII protocol. A Server runs the configured
// number of runtimes (each pinned to its CPU index when Affinity is set),
// each with its own cooperative scheduler; with the "delegate" engine each
// partition's work runs on one of them. A separate goroutine accepts new
// connections, and the primary runtime drives the shared event dispatcher.
package partcache

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/coreware-labs/partcache/internal/cache"
	"github.com/coreware-labs/partcache/internal/command"
	"github.com/coreware-labs/partcache/internal/conn"
	"github.com/coreware-labs/partcache/internal/constants"
	"github.com/coreware-labs/partcache/internal/event"
	"github.com/coreware-labs/partcache/internal/logging"
	"github.com/coreware-labs/partcache/internal/runtime"
)

// Version is the protocol VERSION reply string.
const Version = "1.0.0-partcache"

// Config configures a new Server.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":11211".
	Addr string

	// Volume is the total cache byte budget, split equally across
	// Partitions.
	Volume int64

	// Partitions is the partition count, rounded down to a power of two.
	Partitions int

	// Engine selects the per-partition concurrency strategy: "combiner"
	// (default), "delegate", or "locking".
	Engine string

	// EventBackend selects the socket poller: "epoll" (default) or
	// "io_uring" (requires a binary built with -tags giouring).
	EventBackend string

	// Affinity pins each runtime's OS thread to its CPU index.
	Affinity bool

	// Runtimes is the number of CPU-pinned cooperative runtimes to spawn
	// (spec.md §4.5's "fixed pool of OS threads, one per enabled CPU").
	// Partitions are distributed round-robin across them for the
	// "delegate" engine's post target. Defaults to 1 (everything runs on
	// the primary runtime).
	Runtimes int

	// Logger receives structured log output. Defaults to logging.Default().
	Logger *logging.Logger

	// Observer receives metrics events. Defaults to a *Metrics-backed
	// observer created by the Server.
	Observer Observer
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":11211"
	}
	if c.Volume <= 0 {
		c.Volume = constants.DefaultVolume
	}
	if c.Partitions <= 0 {
		c.Partitions = constants.DefaultPartitions
	}
	if c.Runtimes <= 0 {
		c.Runtimes = 1
	}
	if c.Engine == "" {
		c.Engine = "combiner"
	}
	if c.EventBackend == "" {
		c.EventBackend = string(event.BackendEpoll)
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// Server owns the partition table, one runtime per CPU, and the listening
// socket that feeds them new connections.
type Server struct {
	cfg Config
	log *logging.Logger

	table    *cache.Table
	executor *command.Executor
	metrics  *Metrics
	observer Observer

	listener *net.TCPListener
	disp     event.Dispatcher

	runtimes []*runtime.Runtime

	mu    sync.Mutex
	conns map[int]*conn.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server from cfg: it creates (but does not start) one
// Runtime per cfg.Runtimes and the partition table that distributes work
// across them, so the "delegate" engine has a post target per partition
// before ListenAndServe ever binds a socket.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()

	metrics := NewMetrics()
	observer := cfg.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	runtimes := make([]*runtime.Runtime, cfg.Runtimes)
	for i := range runtimes {
		runtimes[i] = runtime.New(runtime.Config{
			ID:       i,
			Primary:  i == 0,
			Affinity: cfg.Affinity,
		})
	}

	newEngine, err := engineFactory(cfg.Engine, runtimes)
	if err != nil {
		return nil, err
	}

	table := cache.NewTable(cache.Config{
		Partitions:  cfg.Partitions,
		VolumeTotal: cfg.Volume,
		NewEngine:   newEngine,
		Log:         cfg.Logger,
		OnEvict:     func(bytes int64) { observer.ObserveEviction(uint64(bytes)) },
	})

	executor := command.New(table, cfg.Logger, Version)
	executor.Observer = observer

	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		table:    table,
		executor: executor,
		metrics:  metrics,
		runtimes: runtimes,
		conns:    make(map[int]*conn.Conn),
		observer: observer,
	}
	return s, nil
}

// engineFactory returns a per-partition Engine constructor. For "delegate"
// it closes over runtimes so each partition's Engine posts to the runtime
// that owns it (round-robin by partition index), per spec.md §4.7's
// "each partition pinned to one runtime."
func engineFactory(name string, runtimes []*runtime.Runtime) (func(int) cache.Engine, error) {
	switch name {
	case "combiner":
		return func(int) cache.Engine {
			return cache.NewCombinerEngine(constants.RingCapacity, constants.CombinerHandoffBound)
		}, nil
	case "delegate":
		return func(partitionID int) cache.Engine {
			owner := runtimes[partitionID%len(runtimes)]
			return cache.NewDelegateEngine(func(fn func()) {
				owner.Post(runtime.WorkItem{Run: fn})
			})
		}, nil
	case "locking":
		return func(int) cache.Engine { return cache.NewLockEngine() }, nil
	default:
		return nil, fmt.Errorf("partcache: unknown engine %q", name)
	}
}

// ListenAndServe binds the configured address, starts the cfg.Runtimes
// runtimes created by New (independent of Affinity) and the accept loop,
// and blocks until ctx is canceled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr, err := net.ResolveTCPAddr("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("partcache: resolve addr: %w", err)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return fmt.Errorf("partcache: listen: %w", err)
	}
	s.listener = ln

	disp, err := event.New(event.Backend(s.cfg.EventBackend), 0)
	if err != nil {
		ln.Close()
		return fmt.Errorf("partcache: event dispatcher: %w", err)
	}
	s.disp = disp
	s.runtimes[0].SetPump(disp)

	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, rt := range s.runtimes {
		rt := rt
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			rt.Run(s.ctx)
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	<-s.ctx.Done()
	return s.shutdown()
}

func (s *Server) acceptLoop() {
	for {
		tc, err := s.listener.AcceptTCP()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn("accept error", "err", err)
				continue
			}
		}
		s.adopt(tc)
	}
}

func (s *Server) adopt(tc *net.TCPConn) {
	raw, err := tc.SyscallConn()
	if err != nil {
		tc.Close()
		return
	}
	var fd int
	raw.Control(func(p uintptr) { fd = int(p) })

	dup, err := unix.Dup(fd)
	tc.Close() // the Go runtime keeps polling the original fd; work on a dup instead
	if err != nil {
		return
	}
	if err := unix.SetNonblock(dup, true); err != nil {
		unix.Close(dup)
		return
	}

	c := conn.New(dup, s.executor, s.log, s.observer)
	s.mu.Lock()
	s.conns[dup] = c
	s.mu.Unlock()
	c.OnClose(func() {
		s.mu.Lock()
		delete(s.conns, dup)
		s.mu.Unlock()
	})

	if err := s.disp.Register(dup, event.Read, false, c.Handler(s.disp)); err != nil {
		c.Close(s.disp)
	}
}

func (s *Server) shutdown() error {
	if s.listener != nil {
		s.listener.Close()
	}
	for _, rt := range s.runtimes {
		rt.Stop()
	}

	s.mu.Lock()
	conns := make([]*conn.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.Close(s.disp)
	}

	s.wg.Wait()
	if s.disp != nil {
		return s.disp.Close()
	}
	return nil
}

// Close cancels the server's context, causing ListenAndServe to unwind and
// return.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Table exposes the partition table for admin/introspection paths (tests,
// the stats command's reply formatting).
func (s *Server) Table() *cache.Table { return s.table }

// Metrics returns the server's metrics snapshot source.
func (s *Server) Metrics() *Metrics { return s.metrics }
