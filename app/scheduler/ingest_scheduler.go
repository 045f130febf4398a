// Package scheduler runs the periodic fetch-and-process loop for enabled sources
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hikarudo/uwabami/app/sources"
	businessflow "github.com/hikarudo/uwabami/business_flow"
	"gopkg.in/natefinch/lumberjack.v2"
)

// IngestScheduler periodically runs an ingestion batch for every registered source
type IngestScheduler struct {
	registry  *sources.Registry
	ingestion businessflow.IngestionFlow
	logger    *log.Logger
	interval  time.Duration
	limit     int
}

func NewIngestScheduler(
	registry *sources.Registry,
	ingestion businessflow.IngestionFlow,
	interval time.Duration,
	limit int,
) *IngestScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	s := &IngestScheduler{
		registry:  registry,
		ingestion: ingestion,
		interval:  interval,
		limit:     limit,
	}

	// Initialize scheduler-specific logger (to stdout and a rotating file)
	if err := s.initSchedulerLogger(); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a rotating file under data/ (or /data)
func (s *IngestScheduler) initSchedulerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		rotated := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "scheduler.log"),
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		mw := io.MultiWriter(os.Stdout, rotated)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return os.ErrPermission
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *IngestScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *IngestScheduler) runOnce(ctx context.Context) {
	for _, name := range s.registry.Names() {
		summary, err := s.ingestion.Run(ctx, name, s.limit)
		if err != nil {
			if businessflow.IsBatchAlreadyRunning(err) {
				// An operator-triggered run is in flight; the next tick catches up
				s.logger.Printf("scheduler: source=%s batch already running, skipping", name)
				continue
			}
			s.logger.Printf("scheduler: source=%s batch failed: %v", name, err)
			continue
		}

		s.logger.Printf("scheduler: source=%s fetched=%d created=%d updated=%d skipped=%d errors=%d",
			name, summary.Fetched, summary.Created, summary.Updated, summary.Skipped, summary.Errors)

		if ctx.Err() != nil {
			return
		}
	}
}
