// Package contracts defines the abstract capability interfaces the pipeline
// consumes. Adapters under providers/ implement them against concrete
// backends; stages depend only on these interfaces.
package contracts

import (
	"context"

	"github.com/aituber/presenter-pipeline/api/pipeline"
)

// ModerationRequest carries one batch of raw question texts.
type ModerationRequest struct {
	Messages []string `json:"messages"`
}

// ModerationResult lists the approved subset, same string values as sent.
type ModerationResult struct {
	Messages []string `json:"messages"`
}

// Moderator filters a batch of question texts for policy compliance.
type Moderator interface {
	Moderate(ctx context.Context, req ModerationRequest) (ModerationResult, error)
}

// ReplyRequest carries one question text.
type ReplyRequest struct {
	InputText string `json:"inputtext"`
}

// ReplyResult is the generated answer plus its visual cue reference.
type ReplyResult struct {
	ReplyText    string `json:"response_text"`
	VisualCueRef string `json:"image_filename"`
}

// Replier generates an answer for a question.
type Replier interface {
	Reply(ctx context.Context, req ReplyRequest) (ReplyResult, error)
}

// SpeechRequest asks for audio of one segment's text in a voice profile.
type SpeechRequest struct {
	Text         string
	VoiceProfile string
}

// Synthesizer renders segment text into a playable clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) (*pipeline.Clip, error)
}

// FillerSource supplies canned content for the auto-question generator.
type FillerSource interface {
	DefaultQuestion(ctx context.Context) (string, error)
	TemplateMessage(ctx context.Context) (string, error)
}
