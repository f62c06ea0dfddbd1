package entities

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Mouth shapes emitted by the viseme extractor. X is the closed/rest position.
const (
	MouthClosed = "X"
	MouthOpen   = "A"
	MouthRound  = "O"
)

const (
	// LipsyncVersion is the metadata version written into generated tracks
	LipsyncVersion = 1

	// DefaultDuration is used when neither the audio nor the text gives a better estimate
	DefaultDuration = 5.0

	minEstimatedDuration = 3.0
	maxEstimatedDuration = 10.0
	secondsPerCharacter  = 0.06
)

var (
	ErrEmptyTrack  = errors.New("lipsync track has no mouth cues")
	ErrInvalidCue  = errors.New("lipsync track has an invalid mouth cue")
	ErrCueOrdering = errors.New("lipsync track cues are out of order")
)

// MouthCue is a single timestamped mouth shape
type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

// LipsyncMetadata mirrors the metadata block of the extractor output
type LipsyncMetadata struct {
	Version   int     `json:"version,omitempty"`
	SoundFile string  `json:"soundFile,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

// LipsyncTrack drives the avatar's mouth animation for one reply segment
type LipsyncTrack struct {
	Metadata  LipsyncMetadata `json:"metadata"`
	MouthCues []MouthCue      `json:"mouthCues"`
}

// Validate checks that the track can be played back by the frontend
func (t *LipsyncTrack) Validate() error {
	if t == nil || len(t.MouthCues) == 0 {
		return ErrEmptyTrack
	}

	prevStart := 0.0
	for i, cue := range t.MouthCues {
		if cue.Value == "" || cue.Start < 0 || cue.Start >= cue.End {
			return fmt.Errorf("%w: cue %d [%f, %f] %q", ErrInvalidCue, i, cue.Start, cue.End, cue.Value)
		}
		if cue.Start < prevStart {
			return fmt.Errorf("%w: cue %d starts at %f before %f", ErrCueOrdering, i, cue.Start, prevStart)
		}
		prevStart = cue.Start
	}

	return nil
}

// Duration returns the end of the last cue
func (t *LipsyncTrack) Duration() float64 {
	if t == nil || len(t.MouthCues) == 0 {
		return 0
	}
	return t.MouthCues[len(t.MouthCues)-1].End
}

// FallbackTrack partitions [0, duration] into four equal quarters of
// closed, open, round and closed mouth shapes.
func FallbackTrack(duration float64) LipsyncTrack {
	if duration <= 0 {
		duration = DefaultDuration
	}

	return LipsyncTrack{
		Metadata: LipsyncMetadata{Version: LipsyncVersion},
		MouthCues: []MouthCue{
			{Start: 0, End: duration * 0.25, Value: MouthClosed},
			{Start: duration * 0.25, End: duration * 0.5, Value: MouthOpen},
			{Start: duration * 0.5, End: duration * 0.75, Value: MouthRound},
			{Start: duration * 0.75, End: duration, Value: MouthClosed},
		},
	}
}

// PlaceholderTrack is the single closed-mouth cue used when nothing else is available
func PlaceholderTrack() LipsyncTrack {
	return LipsyncTrack{
		Metadata:  LipsyncMetadata{Version: LipsyncVersion},
		MouthCues: []MouthCue{{Start: 0, End: DefaultDuration, Value: MouthClosed}},
	}
}

// EstimateDuration guesses the spoken length of text in seconds, clamped to [3, 10]
func EstimateDuration(text string) float64 {
	if text == "" {
		return DefaultDuration
	}

	estimate := float64(utf8.RuneCountInString(text)) * secondsPerCharacter
	if estimate < minEstimatedDuration {
		return minEstimatedDuration
	}
	if estimate > maxEstimatedDuration {
		return maxEstimatedDuration
	}
	return estimate
}
