package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const validTrack = `{"metadata":{"version":1},"mouthCues":[{"start":0,"end":1,"value":"X"}]}`

func newContentCache(t *testing.T) *ContentCache {
	t.Helper()
	c, err := NewContentCache(filepath.Join(t.TempDir(), "cache"), 10, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	return c
}

func writeWorkingPair(t *testing.T) (audio, lipsync string) {
	t.Helper()
	dir := t.TempDir()
	audio = filepath.Join(dir, "message_s_0.mp3")
	lipsync = filepath.Join(dir, "message_s_0.json")
	require.NoError(t, os.WriteFile(audio, []byte("mp3 bytes"), 0o644))
	require.NoError(t, os.WriteFile(lipsync, []byte(validTrack), 0o644))
	return audio, lipsync
}

func TestKey(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Key("hello"))
	assert.Equal(t, Key("empty"), RequestKey(""))
	assert.Equal(t, Key("hi"), RequestKey("hi"))
}

func TestContentCache_MissThenHit(t *testing.T) {
	c := newContentCache(t)

	entry := c.Lookup("Explain recursion")
	assert.False(t, entry.Hit)
	assert.Equal(t, Key("Explain recursion"), entry.Key)

	audio, lipsync := writeWorkingPair(t)
	require.NoError(t, c.Store(entry.Key, audio, lipsync))

	hit := c.Lookup("Explain recursion")
	require.True(t, hit.Hit)
	wantAudio, wantLipsync := c.Paths(entry.Key)
	assert.Equal(t, wantAudio, hit.AudioPath)
	assert.Equal(t, wantLipsync, hit.LipsyncPath)

	data, err := os.ReadFile(hit.AudioPath)
	require.NoError(t, err)
	assert.Equal(t, "mp3 bytes", string(data))
}

func TestContentCache_DeletedFileIsMiss(t *testing.T) {
	c := newContentCache(t)
	audio, lipsync := writeWorkingPair(t)
	key := Key("hello")
	require.NoError(t, c.Store(key, audio, lipsync))

	cachedAudio, _ := c.Paths(key)
	require.NoError(t, os.Remove(cachedAudio))

	entry := c.Lookup("hello")
	assert.False(t, entry.Hit)
	assert.Equal(t, 0, c.Index().Len(), "stale entry should be purged")
}

func TestContentCache_AdoptsValidPairOnDisk(t *testing.T) {
	c := newContentCache(t)
	key := Key("from a previous run")
	audioPath, lipsyncPath := c.Paths(key)
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0o644))
	require.NoError(t, os.WriteFile(lipsyncPath, []byte(validTrack), 0o644))

	entry := c.Lookup("from a previous run")
	assert.True(t, entry.Hit)
	assert.Equal(t, 1, c.Index().Len())
}

func TestContentCache_IgnoresCorruptPairOnDisk(t *testing.T) {
	c := newContentCache(t)
	key := Key("corrupt")
	audioPath, lipsyncPath := c.Paths(key)
	require.NoError(t, os.WriteFile(audioPath, []byte("mp3"), 0o644))
	require.NoError(t, os.WriteFile(lipsyncPath, []byte(`{"mouthCues":[]}`), 0o644))

	assert.False(t, c.Lookup("corrupt").Hit)
}

func TestContentCache_StoreFailureLeavesIndexEmpty(t *testing.T) {
	c := newContentCache(t)

	err := c.Store(Key("x"), "/does/not/exist.mp3", "/does/not/exist.json")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Index().Len())
}

func TestContentCache_Invalidate(t *testing.T) {
	c := newContentCache(t)
	audio, lipsync := writeWorkingPair(t)
	key := Key("bye")
	require.NoError(t, c.Store(key, audio, lipsync))

	c.Invalidate(key)

	assert.False(t, c.Lookup("bye").Hit)
	cachedAudio, cachedLipsync := c.Paths(key)
	assert.NoFileExists(t, cachedAudio)
	assert.NoFileExists(t, cachedLipsync)
}
