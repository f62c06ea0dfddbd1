package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/process"
	"github.com/satriahrh/studybuddy/internal/process/processtest"
)

func newWav(t *testing.T) (wav, json string) {
	t.Helper()
	dir := t.TempDir()
	wav = filepath.Join(dir, "message_s_0.wav")
	writeFile(t, wav, processtest.WavHeader)
	return wav, filepath.Join(dir, "message_s_0.json")
}

func TestLipsyncExtractor_FirstAttemptSucceeds(t *testing.T) {
	runner := &processtest.Runner{}
	extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: "rhubarb"}, zaptest.NewLogger(t), nil)
	wav, jsonPath := newWav(t)

	track, err := extractor.Extract(context.Background(), wav, jsonPath)
	require.NoError(t, err)
	assert.Len(t, track.MouthCues, 2)

	calls := runner.CallsTo("rhubarb")
	require.Len(t, calls, 1)
	assert.Equal(t, 10*time.Second, calls[0].Timeout)
	assert.Contains(t, calls[0].Args, RecognizerPhonetic)
}

func TestLipsyncExtractor_RetriesOnceWithShorterBudget(t *testing.T) {
	runner := &processtest.Runner{FailExtractAttempts: 1}
	extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: "rhubarb"}, zaptest.NewLogger(t), nil)
	wav, jsonPath := newWav(t)

	_, err := extractor.Extract(context.Background(), wav, jsonPath)
	require.NoError(t, err)

	calls := runner.CallsTo("rhubarb")
	require.Len(t, calls, 2)
	assert.Equal(t, 6*time.Second, calls[1].Timeout)
	assert.Contains(t, calls[1].Args, RecognizerPocketSphinx)
}

func TestLipsyncExtractor_GivesUpAfterSecondFailure(t *testing.T) {
	runner := &processtest.Runner{FailExtract: process.ErrTimeout}
	extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: "rhubarb"}, zaptest.NewLogger(t), nil)
	wav, jsonPath := newWav(t)

	_, err := extractor.Extract(context.Background(), wav, jsonPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, process.ErrTimeout), "got %v", err)
	assert.Len(t, runner.CallsTo("rhubarb"), 2)
}

func TestLipsyncExtractor_InvalidOutputIsRetried(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{name: "no cues", output: `{"metadata":{},"mouthCues":[]}`},
		{name: "unparsable", output: `{"mouthCues": [`},
		{name: "inverted cue", output: `{"mouthCues":[{"start":1,"end":0.5,"value":"A"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &processtest.Runner{ExtractOutput: tt.output}
			extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: "rhubarb"}, zaptest.NewLogger(t), nil)
			wav, jsonPath := newWav(t)

			_, err := extractor.Extract(context.Background(), wav, jsonPath)
			assert.Error(t, err)
			assert.Len(t, runner.CallsTo("rhubarb"), 2)
		})
	}
}

func TestLipsyncExtractor_SelfCheck(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "rhubarb")
	writeFile(t, binary, []byte("#!/bin/sh\n"))
	require.NoError(t, os.Chmod(binary, 0o644))

	runner := &processtest.Runner{}
	extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: binary}, zaptest.NewLogger(t), nil)

	require.NoError(t, extractor.SelfCheck(context.Background()))
	assert.True(t, extractor.Enabled())

	info, err := os.Stat(binary)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit should be repaired")
}

func TestLipsyncExtractor_MissingBinaryDisablesExtraction(t *testing.T) {
	runner := &processtest.Runner{}
	extractor := NewLipsyncExtractor(runner, ExtractorConfig{BinaryPath: filepath.Join(t.TempDir(), "missing")}, zaptest.NewLogger(t), nil)

	err := extractor.SelfCheck(context.Background())
	assert.True(t, errors.Is(err, process.ErrToolMissing), "got %v", err)
	assert.False(t, extractor.Enabled())

	wav, jsonPath := newWav(t)
	_, err = extractor.Extract(context.Background(), wav, jsonPath)
	assert.True(t, errors.Is(err, process.ErrToolMissing))
	assert.Empty(t, runner.CallsTo("missing"))
}

func TestFallbackSynthesizer_Build(t *testing.T) {
	dir := t.TempDir()
	runner := &processtest.Runner{ProbeOutput: "8.0"}
	tools := NewAudioTools(runner, AudioToolsConfig{}, zaptest.NewLogger(t), nil)
	fallback := NewFallbackSynthesizer(tools, zaptest.NewLogger(t))

	audio := filepath.Join(dir, "a.mp3")
	writeFile(t, audio, []byte("mp3"))

	tests := []struct {
		name      string
		audioPath string
		text      string
		want      float64
	}{
		{name: "probed audio", audioPath: audio, text: "hi", want: 8},
		{name: "missing audio uses text", audioPath: filepath.Join(dir, "none.mp3"), text: "short", want: 3},
		{name: "long text is clamped", text: string(make([]byte, 1000)), want: 10},
		{name: "nothing known", want: entities.DefaultDuration},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonPath := filepath.Join(dir, "fallback_"+string(rune('a'+i))+".json")

			track, err := fallback.Build(context.Background(), jsonPath, tt.audioPath, tt.text)
			require.NoError(t, err)
			require.Len(t, track.MouthCues, 4)
			assert.InDelta(t, tt.want, track.Duration(), 1e-9)
			assert.Equal(t, []string{"X", "A", "O", "X"}, []string{
				track.MouthCues[0].Value, track.MouthCues[1].Value, track.MouthCues[2].Value, track.MouthCues[3].Value,
			})

			onDisk, err := ReadTrack(jsonPath)
			require.NoError(t, err)
			assert.Equal(t, track.MouthCues, onDisk.MouthCues)
		})
	}
}
