package entities

// FacialExpression is the avatar face preset for a reply segment
type FacialExpression string

const (
	ExpressionSmile     FacialExpression = "smile"
	ExpressionSad       FacialExpression = "sad"
	ExpressionAngry     FacialExpression = "angry"
	ExpressionSurprised FacialExpression = "surprised"
	ExpressionFunnyFace FacialExpression = "funnyFace"
	ExpressionDefault   FacialExpression = "default"
)

// Animation is the avatar body animation clip for a reply segment
type Animation string

const (
	AnimationTalking0       Animation = "talking_0"
	AnimationTalking1       Animation = "talking_1"
	AnimationTalking2       Animation = "talking_2"
	AnimationIdle           Animation = "idle"
	AnimationLaughingSlowly Animation = "laughing_slowly"
	AnimationSillyDance     Animation = "silly_dance"
	AnimationTellingSecret  Animation = "telling_secret"
)

var knownExpressions = map[FacialExpression]bool{
	ExpressionSmile:     true,
	ExpressionSad:       true,
	ExpressionAngry:     true,
	ExpressionSurprised: true,
	ExpressionFunnyFace: true,
	ExpressionDefault:   true,
}

var knownAnimations = map[Animation]bool{
	AnimationTalking0:       true,
	AnimationTalking1:       true,
	AnimationTalking2:       true,
	AnimationIdle:           true,
	AnimationLaughingSlowly: true,
	AnimationSillyDance:     true,
	AnimationTellingSecret:  true,
}

// NormalizeExpression maps unknown tags to the default expression
func NormalizeExpression(raw string) FacialExpression {
	if e := FacialExpression(raw); knownExpressions[e] {
		return e
	}
	return ExpressionDefault
}

// NormalizeAnimation maps unknown tags to a talking animation
func NormalizeAnimation(raw string) Animation {
	if a := Animation(raw); knownAnimations[a] {
		return a
	}
	return AnimationTalking0
}

// ReplySegment is one unit of conversational output sent to the avatar.
// Audio holds base64 encoded audio or an empty string.
type ReplySegment struct {
	Text             string           `json:"text"`
	FacialExpression FacialExpression `json:"facialExpression"`
	Animation        Animation        `json:"animation"`
	Audio            string           `json:"audio"`
	Lipsync          *LipsyncTrack    `json:"lipsync,omitempty"`
}

// WithMedia returns a copy of the segment carrying the given audio and lipsync
func (s ReplySegment) WithMedia(audio string, lipsync LipsyncTrack) ReplySegment {
	s.Audio = audio
	s.Lipsync = &lipsync
	return s
}

// Placeholder returns a copy of the segment with no audio and the one-cue track
func (s ReplySegment) Placeholder() ReplySegment {
	return s.WithMedia("", PlaceholderTrack())
}

// ChatResponse is the bundle returned to the avatar frontend
type ChatResponse struct {
	Messages       []ReplySegment `json:"messages"`
	MermaidDiagram *string        `json:"mermaidDiagram"`
}

// CloneSegments copies a segment slice so cached values are never mutated in place
func CloneSegments(segments []ReplySegment) []ReplySegment {
	out := make([]ReplySegment, len(segments))
	copy(out, segments)
	return out
}
