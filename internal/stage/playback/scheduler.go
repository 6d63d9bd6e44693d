// Package playback serializes prepared speeches onto the audio output. At
// most one speech plays at a time; segments play strictly in order with a
// fixed gap, and the scheduler rests after each speech before looking for
// the next one.
package playback

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
)

const stageName = "playback"

// ErrBusy is returned by PlayAdhoc while a speech is already playing.
var ErrBusy = errors.New("playback busy")

// Output plays one segment to its natural end. Implementations own applying
// the segment's volume scale and restoring the channel afterwards.
type Output interface {
	Play(ctx context.Context, seg *pipeline.TalkSegment) error
}

// Source is the prepared-speech surface the scheduler consumes.
type Source interface {
	HasPrepared() bool
	PopPrepared() (next pipeline.Speech, skipped []pipeline.Speech, ok bool)
}

// Config tunes scheduling pacing.
type Config struct {
	// PollInterval is the wait between prepared-queue checks while idle.
	PollInterval time.Duration
	// SegmentGap is the pause after each segment of a speech.
	SegmentGap time.Duration
	// Cooldown is the rest after a speech finishes.
	Cooldown time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.SegmentGap <= 0 {
		c.SegmentGap = 500 * time.Millisecond
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 2 * time.Second
	}
	return c
}

// Scheduler drains prepared speeches one at a time.
type Scheduler struct {
	cfg      Config
	src      Source
	out      Output
	board    *status.Board
	speaking atomic.Bool
}

// New constructs the playback scheduler.
func New(cfg Config, src Source, out Output, board *status.Board) *Scheduler {
	return &Scheduler{
		cfg:   cfg.withDefaults(),
		src:   src,
		out:   out,
		board: board,
	}
}

// Speaking reports whether a speech is currently playing.
func (s *Scheduler) Speaking() bool {
	return s.speaking.Load()
}

// Run executes the playback loop until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if s.src.HasPrepared() {
			s.playNext(ctx)
		}
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) playNext(ctx context.Context) {
	if !s.speaking.CompareAndSwap(false, true) {
		return
	}
	defer s.speaking.Store(false)

	next, skipped, ok := s.src.PopPrepared()
	for _, sp := range skipped {
		s.board.Remove(sp.Conversation.Question)
		telemetry.DefaultEmitter().EmitLog("info", "skipping auto speech",
			map[string]string{"text": sp.Conversation.Question.Text},
			telemetry.Correlation{Stage: stageName, QuestionID: sp.Conversation.Question.ID})
	}
	if !ok {
		return
	}

	s.board.Remove(next.Conversation.Question)
	s.playSpeech(ctx, next)
}

func (s *Scheduler) playSpeech(ctx context.Context, sp pipeline.Speech) {
	telemetry.DefaultEmitter().EmitLog("info", "speech started",
		map[string]string{"segments": strconv.Itoa(len(sp.Segments))},
		telemetry.Correlation{Stage: stageName, QuestionID: sp.Conversation.Question.ID})

	for i, seg := range sp.Segments {
		if seg.Audio() == nil {
			// Empty-text segments are ready without audio; nothing to play.
			continue
		}
		s.board.SetCurrentSegment(seg)
		if err := s.out.Play(ctx, seg); err != nil {
			telemetry.DefaultEmitter().EmitLog("warn", "segment playback failed",
				map[string]string{"segment": strconv.Itoa(i), "error": err.Error()},
				telemetry.Correlation{Stage: stageName, QuestionID: sp.Conversation.Question.ID})
		}
		if sleepErr := sleep(ctx, s.cfg.SegmentGap); sleepErr != nil {
			break
		}
	}

	s.board.SetCurrentSegment(nil)
	_ = sleep(ctx, s.cfg.Cooldown)
}

// PlayAdhoc plays one already-prepared speech immediately. It refuses with
// ErrBusy while a queued speech is playing instead of interleaving audio.
func (s *Scheduler) PlayAdhoc(ctx context.Context, sp pipeline.Speech) error {
	if !s.speaking.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.speaking.Store(false)
	s.playSpeech(ctx, sp)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
