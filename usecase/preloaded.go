package usecase

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/satriahrh/studybuddy/domain/entities"
	"github.com/satriahrh/studybuddy/internal/media"
)

type preloadedLine struct {
	segment entities.ReplySegment
	asset   string
}

var (
	greetingLines = []preloadedLine{{
		segment: entities.ReplySegment{
			Text:             "Hey dear... How was your day?",
			FacialExpression: entities.ExpressionSmile,
			Animation:        entities.AnimationTalking1,
		},
		asset: "intro_0",
	}}

	apiWarningLines = []preloadedLine{
		{
			segment: entities.ReplySegment{
				Text:             "Please my dear, don't forget to add your API keys!",
				FacialExpression: entities.ExpressionAngry,
				Animation:        entities.AnimationTalking2,
			},
			asset: "api_0",
		},
		{
			segment: entities.ReplySegment{
				Text:             "You don't want to ruin Wawa Sensei with a crazy Llama and ElevenLabs bill, right?",
				FacialExpression: entities.ExpressionSmile,
				Animation:        entities.AnimationLaughingSlowly,
			},
			asset: "api_1",
		},
	}

	errorLines = []preloadedLine{{
		segment: entities.ReplySegment{
			Text:             "I'm sorry, there was an error connecting to my brain. Can we try again?",
			FacialExpression: entities.ExpressionSad,
			Animation:        entities.AnimationSillyDance,
		},
	}}
)

// Preloaded holds the fixed bundles served without calling any provider
type Preloaded struct {
	greeting   []entities.ReplySegment
	apiWarning []entities.ReplySegment
	failure    []entities.ReplySegment
}

// LoadPreloaded reads the recorded greeting and warning assets from dir.
// Missing or unreadable assets give a text-only segment with an estimated lipsync track.
func LoadPreloaded(dir string, logger *zap.Logger) *Preloaded {
	return &Preloaded{
		greeting:   loadLines(dir, greetingLines, logger),
		apiWarning: loadLines(dir, apiWarningLines, logger),
		failure:    loadLines(dir, errorLines, logger),
	}
}

// Greeting is served for an empty user message
func (p *Preloaded) Greeting() entities.ChatResponse {
	return entities.ChatResponse{Messages: entities.CloneSegments(p.greeting)}
}

// APIWarning is served when provider credentials are missing
func (p *Preloaded) APIWarning() entities.ChatResponse {
	return entities.ChatResponse{Messages: entities.CloneSegments(p.apiWarning)}
}

// Failure is served alongside an internal error
func (p *Preloaded) Failure() entities.ChatResponse {
	return entities.ChatResponse{Messages: entities.CloneSegments(p.failure)}
}

func loadLines(dir string, lines []preloadedLine, logger *zap.Logger) []entities.ReplySegment {
	out := make([]entities.ReplySegment, 0, len(lines))
	for _, line := range lines {
		if line.asset == "" {
			out = append(out, textOnly(line.segment))
			continue
		}

		segment, err := loadAsset(dir, line)
		if err != nil {
			logger.Warn("Failed to preload response asset, serving text only",
				zap.String("asset", line.asset),
				zap.Error(err))
			segment = textOnly(line.segment)
		}
		out = append(out, segment)
	}
	return out
}

func loadAsset(dir string, line preloadedLine) (entities.ReplySegment, error) {
	audio, err := os.ReadFile(filepath.Join(dir, line.asset+".wav"))
	if err != nil {
		return entities.ReplySegment{}, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return entities.ReplySegment{}, fmt.Errorf("failed to read audio: %w", media.ErrEmptyFile)
	}

	track, err := media.ReadTrack(filepath.Join(dir, line.asset+".json"))
	if err != nil {
		return entities.ReplySegment{}, err
	}

	return line.segment.WithMedia(base64.StdEncoding.EncodeToString(audio), track), nil
}

func textOnly(segment entities.ReplySegment) entities.ReplySegment {
	return segment.WithMedia("", entities.FallbackTrack(finalDuration(segment.Text)))
}
