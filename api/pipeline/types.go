// Package pipeline defines the data model shared by every stage of the
// live-presenter pipeline: audience questions, generated conversations,
// spoken segments, and fully prepared speeches.
package pipeline

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Channel identifies the logical audio output a segment is routed to.
type Channel string

const (
	ChannelNarrator  Channel = "narrator"
	ChannelPresenter Channel = "presenter"
)

// Question is a single audience/operator-submitted text item. Immutable
// after creation; the ID is globally unique per process.
type Question struct {
	ID              string
	Text            string
	AuthorName      string
	AvatarRef       string
	IsAutoGenerated bool
}

// NewQuestion creates a Question with a fresh identifier.
func NewQuestion(text, authorName, avatarRef string, autoGenerated bool) Question {
	return Question{
		ID:              uuid.NewString(),
		Text:            text,
		AuthorName:      authorName,
		AvatarRef:       avatarRef,
		IsAutoGenerated: autoGenerated,
	}
}

// AutoGenerated reports whether this item is filler injected by the
// auto-question generator rather than a live submission.
func (q Question) AutoGenerated() bool {
	return q.IsAutoGenerated
}

// Conversation pairs a question with its generated reply and the visual cue
// the presentation layer should show while it is spoken.
type Conversation struct {
	Question     Question
	ReplyText    string
	VisualCueRef string
}

func (c Conversation) AutoGenerated() bool {
	return c.Question.IsAutoGenerated
}

// Clip is a decoded audio payload ready for playback.
type Clip struct {
	Data     []byte
	Format   string
	Duration time.Duration
}

// TalkSegment is one unit of spoken output. Audio transitions from absent to
// present exactly once; synthesis goroutines publish through SetAudio while
// the ready-poll reads through Audio.
type TalkSegment struct {
	Channel      Channel
	Text         string
	VolumeScale  float64
	VisualCueRef string
	DisplayLabel string

	audio atomic.Pointer[Clip]
}

// NewTalkSegment builds a segment; an empty display label defaults to the
// segment text.
func NewTalkSegment(channel Channel, text string, volumeScale float64, visualCueRef, displayLabel string) *TalkSegment {
	if displayLabel == "" {
		displayLabel = text
	}
	return &TalkSegment{
		Channel:      channel,
		Text:         text,
		VolumeScale:  volumeScale,
		VisualCueRef: visualCueRef,
		DisplayLabel: displayLabel,
	}
}

// SetAudio publishes the synthesized clip. Only the first non-nil clip wins.
func (s *TalkSegment) SetAudio(clip *Clip) bool {
	if clip == nil {
		return false
	}
	return s.audio.CompareAndSwap(nil, clip)
}

// Audio returns the synthesized clip, or nil while absent.
func (s *TalkSegment) Audio() *Clip {
	return s.audio.Load()
}

// Ready reports whether the segment can be played: audio present, or nothing
// to say.
func (s *TalkSegment) Ready() bool {
	return s.audio.Load() != nil || strings.TrimSpace(s.Text) == ""
}

// Speech is a fully synthesized conversation: an ordered sequence of ready
// segments. It is created only once every segment became ready in time.
type Speech struct {
	Conversation Conversation
	Segments     []*TalkSegment
}

func (s Speech) AutoGenerated() bool {
	return s.Conversation.Question.IsAutoGenerated
}
