package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/internal/media"
	"github.com/satriahrh/studybuddy/internal/metrics"
)

const emptyRequestKey = "empty"

// Key returns the content address of text
func Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// RequestKey hashes a raw user message, mapping the empty message to a fixed sentinel
func RequestKey(message string) string {
	if message == "" {
		return Key(emptyRequestKey)
	}
	return Key(message)
}

// Entry is the outcome of a content cache lookup. On a miss only Key is set.
type Entry struct {
	Key         string
	AudioPath   string
	LipsyncPath string
	Hit         bool
}

// ContentCache maps md5(text) to a permanent audio + lipsync pair under dir.
// The in-memory index is advisory: every hit is re-validated against the filesystem.
type ContentCache struct {
	dir     string
	index   *BoundedCache[Entry]
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewContentCache creates the cache directory if needed
func NewContentCache(dir string, capacity int, logger *zap.Logger, m *metrics.Metrics) (*ContentCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &ContentCache{
		dir:     dir,
		index:   NewBoundedCache[Entry]("audio", capacity),
		logger:  logger,
		metrics: m,
	}, nil
}

func (c *ContentCache) Dir() string {
	return c.dir
}

// Index exposes the in-memory index so the sweeper can trim it
func (c *ContentCache) Index() *BoundedCache[Entry] {
	return c.index
}

// Paths returns the permanent file locations for key
func (c *ContentCache) Paths(key string) (audioPath, lipsyncPath string) {
	return filepath.Join(c.dir, key+".mp3"), filepath.Join(c.dir, key+".json")
}

// Lookup resolves text to a cached pair. A stale in-memory entry is purged and a
// complete pair already on disk is adopted into the index.
func (c *ContentCache) Lookup(text string) Entry {
	key := Key(text)

	if entry, ok := c.index.Get(key); ok {
		if filesExist(entry.AudioPath, entry.LipsyncPath) {
			c.metrics.CacheLookup("hit")
			entry.Hit = true
			return entry
		}
		c.logger.Warn("Cached files are missing, purging entry", zap.String("key", key))
		c.index.Delete(key)
		c.metrics.CacheLookup("stale")
	}

	audioPath, lipsyncPath := c.Paths(key)
	if filesExist(audioPath, lipsyncPath) {
		if _, err := media.ReadTrack(lipsyncPath); err == nil {
			entry := Entry{Key: key, AudioPath: audioPath, LipsyncPath: lipsyncPath}
			c.index.Set(key, entry)
			c.metrics.CacheLookup("disk")
			entry.Hit = true
			return entry
		}
		c.logger.Debug("Ignoring invalid lipsync file on disk", zap.String("key", key))
	}

	c.metrics.CacheLookup("miss")
	return Entry{Key: key}
}

// Store copies the working files into the permanent pair for key and indexes it.
// Callers treat a failure as non-fatal.
func (c *ContentCache) Store(key, audioSrc, lipsyncSrc string) error {
	audioPath, lipsyncPath := c.Paths(key)

	if err := copyFile(audioSrc, audioPath); err != nil {
		return fmt.Errorf("failed to cache audio: %w", err)
	}
	if err := copyFile(lipsyncSrc, lipsyncPath); err != nil {
		return fmt.Errorf("failed to cache lipsync: %w", err)
	}

	c.index.Set(key, Entry{Key: key, AudioPath: audioPath, LipsyncPath: lipsyncPath})
	c.logger.Debug("Cached audio and lipsync", zap.String("key", key))
	return nil
}

// Invalidate evicts key and removes its permanent files
func (c *ContentCache) Invalidate(key string) {
	c.index.Delete(key)

	audioPath, lipsyncPath := c.Paths(key)
	for _, p := range []string{audioPath, lipsyncPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("Failed to remove invalid cache file", zap.String("path", p), zap.Error(err))
		}
	}
}

func filesExist(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// copyFile writes through a temp file in the destination directory and renames it into place
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
