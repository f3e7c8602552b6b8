package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	partcache "github.com/coreware-labs/partcache"
	"github.com/coreware-labs/partcache/internal/logging"
)

func main() {
	var (
		addr       = flag.String("addr", ":11211", "TCP address to listen on")
		volumeStr  = flag.String("volume", "64M", "Total cache byte budget (e.g. 64M, 1G)")
		partitions = flag.Int("partitions", partcache.DefaultPartitions, "Partition count, rounded down to a power of two")
		engine     = flag.String("engine", "combiner", "Per-partition concurrency strategy: combiner, delegate, or locking")
		eventBack  = flag.String("event-backend", "epoll", "Socket poller: epoll or io_uring (io_uring requires -tags giouring)")
		runtimes   = flag.Int("runtimes", 1, "Number of CPU-pinned cooperative runtimes")
		affinity   = flag.Bool("affinity", false, "Pin each runtime's OS thread to its CPU index")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	volume, err := parseSize(*volumeStr)
	if err != nil {
		log.Fatalf("invalid volume %q: %v", *volumeStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	srv, err := partcache.New(partcache.Config{
		Addr:         *addr,
		Volume:       volume,
		Partitions:   *partitions,
		Engine:       *engine,
		EventBackend: *eventBack,
		Runtimes:     *runtimes,
		Affinity:     *affinity,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	logger.Info("starting partcached",
		"addr", *addr,
		"volume", formatSize(volume),
		"partitions", *partitions,
		"engine", *engine,
		"runtimes", *runtimes)

	fmt.Printf("partcached listening on %s (volume=%s, partitions=%d, engine=%s)\n",
		*addr, formatSize(volume), *partitions, *engine)
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			logger.Info("=== GOROUTINE STACK TRACE DUMP ===")
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n=== END STACK DUMP ===\n\n", buf[:n])

			filename := fmt.Sprintf("partcached-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump at %s\nProcess ID: %d\n\n", time.Now().Format(time.RFC3339), os.Getpid())
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server exited", "error", err)
		}
	}

	cancel()

	cleanupDone := make(chan struct{})
	go func() {
		srv.Close()
		close(cleanupDone)
	}()

	select {
	case <-cleanupDone:
	case <-time.After(1 * time.Second):
		logger.Info("cleanup timeout, forcing exit")
	}

	os.Exit(0)
}

// parseSize parses a size string like "64M", "1G", "512K".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "G")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
