// Package status is the read-only observation surface for presentation-layer
// collaborators: how many questions are pending between approval and
// playback, and which segment is currently being spoken.
package status

import (
	"sync"

	"github.com/aituber/presenter-pipeline/api/pipeline"
)

// CurrentSegment is a snapshot of the segment being spoken right now.
type CurrentSegment struct {
	Channel      pipeline.Channel
	Text         string
	DisplayLabel string
	VisualCueRef string
}

// Board tracks pending questions (approved, prepared, or in-flight) and the
// currently playing segment. Observations never feed back into the pipeline.
type Board struct {
	mu      sync.Mutex
	pending map[string]pipeline.Question
	current *CurrentSegment
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{pending: make(map[string]pipeline.Question)}
}

// Append registers a question as pending. Duplicate IDs are a no-op.
func (b *Board) Append(q pipeline.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[q.ID] = q
}

// Remove clears a question from the pending set.
func (b *Board) Remove(q pipeline.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, q.ID)
}

// Len returns the number of pending questions.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Contains reports whether the question is still pending.
func (b *Board) Contains(q pipeline.Question) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[q.ID]
	return ok
}

// SetCurrentSegment publishes the segment being spoken; nil clears it.
func (b *Board) SetCurrentSegment(seg *pipeline.TalkSegment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seg == nil {
		b.current = nil
		return
	}
	b.current = &CurrentSegment{
		Channel:      seg.Channel,
		Text:         seg.Text,
		DisplayLabel: seg.DisplayLabel,
		VisualCueRef: seg.VisualCueRef,
	}
}

// Current returns the currently playing segment, or nil while idle.
func (b *Board) Current() *CurrentSegment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return nil
	}
	snapshot := *b.current
	return &snapshot
}
