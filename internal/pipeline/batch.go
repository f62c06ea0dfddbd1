package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/studybuddy/domain/entities"
)

const (
	defaultGroupSize  = 2
	defaultGroupPause = 300 * time.Millisecond
)

// SegmentProcessor produces the media for a single reply segment
type SegmentProcessor interface {
	Process(ctx context.Context, segment entities.ReplySegment, sessionID string, index int) entities.ReplySegment
}

// BatchConfig bounds concurrent segment processing
type BatchConfig struct {
	GroupSize  int
	GroupPause time.Duration
}

// Batcher runs a SegmentProcessor over an ordered list of segments in small groups
type Batcher struct {
	processor SegmentProcessor
	cfg       BatchConfig
	logger    *zap.Logger
}

// NewBatcher creates a batch orchestrator, applying defaults for unset values.
// A negative GroupPause disables pacing.
func NewBatcher(processor SegmentProcessor, cfg BatchConfig, logger *zap.Logger) *Batcher {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = defaultGroupSize
	}
	if cfg.GroupPause == 0 {
		cfg.GroupPause = defaultGroupPause
	}
	if cfg.GroupPause < 0 {
		cfg.GroupPause = 0
	}

	return &Batcher{
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessAll returns the processed segments in input order. Segments within a
// group run concurrently; groups run one after another with a pause in between.
// A panicking segment is replaced with its placeholder.
func (b *Batcher) ProcessAll(ctx context.Context, segments []entities.ReplySegment, sessionID string) []entities.ReplySegment {
	results := make([]entities.ReplySegment, len(segments))

	for start := 0; start < len(segments); start += b.cfg.GroupSize {
		end := start + b.cfg.GroupSize
		if end > len(segments) {
			end = len(segments)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = b.processOne(ctx, segments[i], sessionID, i)
				return nil
			})
		}
		_ = g.Wait()

		if end < len(segments) && b.cfg.GroupPause > 0 {
			select {
			case <-time.After(b.cfg.GroupPause):
			case <-ctx.Done():
			}
		}
	}

	return results
}

func (b *Batcher) processOne(ctx context.Context, segment entities.ReplySegment, sessionID string, index int) (out entities.ReplySegment) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Failed to process message",
				zap.Int("index", index),
				zap.String("panic", fmt.Sprint(r)))
			out = segment.Placeholder()
		}
	}()

	return b.processor.Process(ctx, segment, sessionID, index)
}
