package sweeper

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/studybuddy/internal/metrics"
)

const (
	defaultInterval     = time.Hour
	defaultWorkingTTL   = time.Hour
	defaultCacheTTL     = 24 * time.Hour
	defaultDeleteBatch  = 20
	defaultSweepTimeout = 5 * time.Minute

	workingFilePrefix = "message_"
)

// protectedMarkers keep preloaded assets out of the working-file sweep
var protectedMarkers = []string{"intro", "api"}

// Trimmer is an in-memory cache that can shed its oldest entries
type Trimmer interface {
	Name() string
	Trim() int
}

// Config controls retention
type Config struct {
	WorkingDir  string
	CacheDir    string
	Interval    time.Duration
	WorkingTTL  time.Duration
	CacheTTL    time.Duration
	DeleteBatch int
}

// Report summarizes a single sweep
type Report struct {
	WorkingDeleted int
	CacheDeleted   int
	Trimmed        map[string]int
}

// Sweeper periodically deletes expired files and trims bounded caches
type Sweeper struct {
	cfg      Config
	trimmers []Trimmer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	started  atomic.Bool
	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a retention sweeper, applying defaults for unset values
func New(cfg Config, trimmers []Trimmer, logger *zap.Logger, m *metrics.Metrics) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.WorkingTTL <= 0 {
		cfg.WorkingTTL = defaultWorkingTTL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.DeleteBatch <= 0 {
		cfg.DeleteBatch = defaultDeleteBatch
	}

	return &Sweeper{
		cfg:      cfg,
		trimmers: trimmers,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
	s.logger.Info("Retention sweeper started", zap.Duration("interval", s.cfg.Interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.started.Load() {
			<-s.done
		}
		s.logger.Info("Retention sweeper stopped")
	})
}

func (s *Sweeper) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), defaultSweepTimeout)
			s.RunOnce(ctx)
			cancel()
		}
	}
}

// RunOnce performs a single sweep synchronously
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	now := s.now()
	report := Report{Trimmed: make(map[string]int)}

	if s.cfg.WorkingDir != "" {
		report.WorkingDeleted = s.sweepDir(ctx, s.cfg.WorkingDir, now.Add(-s.cfg.WorkingTTL), isWorkingFile)
		s.metrics.Swept("working", report.WorkingDeleted)
	}
	if s.cfg.CacheDir != "" {
		report.CacheDeleted = s.sweepDir(ctx, s.cfg.CacheDir, now.Add(-s.cfg.CacheTTL), func(string) bool { return true })
		s.metrics.Swept("cache", report.CacheDeleted)
	}

	for _, t := range s.trimmers {
		if n := t.Trim(); n > 0 {
			report.Trimmed[t.Name()] = n
		}
	}

	s.logger.Info("Retention sweep completed",
		zap.Int("workingDeleted", report.WorkingDeleted),
		zap.Int("cacheDeleted", report.CacheDeleted),
		zap.Any("trimmed", report.Trimmed))
	return report
}

// sweepDir removes matching files last modified before cutoff. Per-file errors are ignored.
func (s *Sweeper) sweepDir(ctx context.Context, dir string, cutoff time.Time, match func(name string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("Failed to list directory", zap.String("dir", dir), zap.Error(err))
		}
		return 0
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && match(e.Name()) {
			names = append(names, e.Name())
		}
	}

	var mu sync.Mutex
	deleted := 0
	for start := 0; start < len(names); start += s.cfg.DeleteBatch {
		if ctx.Err() != nil {
			break
		}
		end := start + s.cfg.DeleteBatch
		if end > len(names) {
			end = len(names)
		}

		var g errgroup.Group
		for _, name := range names[start:end] {
			path := filepath.Join(dir, name)
			g.Go(func() error {
				info, err := os.Stat(path)
				if err != nil || !info.ModTime().Before(cutoff) {
					return nil
				}
				if err := os.Remove(path); err != nil {
					s.logger.Debug("Failed to delete expired file", zap.String("path", path), zap.Error(err))
					return nil
				}
				mu.Lock()
				deleted++
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	return deleted
}

func isWorkingFile(name string) bool {
	if !strings.HasPrefix(name, workingFilePrefix) {
		return false
	}
	for _, marker := range protectedMarkers {
		if strings.Contains(name, marker) {
			return false
		}
	}
	return true
}
