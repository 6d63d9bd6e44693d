// Package synthesis turns conversations into ready-to-play speeches: it
// splits the reply into bounded segments, requests audio for every segment
// concurrently, and publishes the speech only once all segments became ready
// within the deadline. Its bounded prepared queue is the pipeline's
// backpressure gate.
package synthesis

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
	"github.com/aituber/presenter-pipeline/internal/textnorm"
)

const stageName = "synthesis"

// Config tunes segment building and audio generation.
type Config struct {
	// MaxSegmentLength caps presenter chunk length in runes.
	MaxSegmentLength int
	// GenerateTimeout bounds how long a candidate speech may wait for all
	// of its segments to become ready.
	GenerateTimeout time.Duration
	// ReadyPollInterval is the cadence of the all-ready check.
	ReadyPollInterval time.Duration
	// MaxSynthAttempts bounds per-segment synthesis attempts.
	MaxSynthAttempts int
	// InitialBackoff is the first per-segment retry delay; doubles per
	// attempt.
	InitialBackoff time.Duration
	// PollInterval is the wait between input-queue checks.
	PollInterval time.Duration
	// PreparedCapacity is the backpressure gate between synthesis and
	// playback.
	PreparedCapacity int

	NarratorVoice        string
	PresenterVoice       string
	NarratorVolumeScale  float64
	PresenterVolumeScale float64
	NarratorVisualCue    string
	NarratorLabel        string
	// SpeechReplacements rewrite segment text for the synthesis request
	// only; display labels keep the original spelling.
	SpeechReplacements []textnorm.Replacement
}

func (c Config) withDefaults() Config {
	if c.MaxSegmentLength < 1 {
		c.MaxSegmentLength = 40
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 120 * time.Second
	}
	if c.ReadyPollInterval <= 0 {
		c.ReadyPollInterval = time.Second
	}
	if c.MaxSynthAttempts < 1 {
		c.MaxSynthAttempts = 10
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.PreparedCapacity < 1 {
		c.PreparedCapacity = 20
	}
	if c.NarratorVoice == "" {
		c.NarratorVoice = "azure"
	}
	if c.PresenterVoice == "" {
		c.PresenterVoice = "male"
	}
	if c.NarratorVolumeScale <= 0 {
		c.NarratorVolumeScale = 0.2
	}
	if c.PresenterVolumeScale <= 0 {
		c.PresenterVolumeScale = 1.0
	}
	if c.NarratorVisualCue == "" {
		c.NarratorVisualCue = "slide_1"
	}
	if c.NarratorLabel == "" {
		c.NarratorLabel = "考え中..."
	}
	return c
}

// Stage owns the conversation queue and the prepared-speech queue.
type Stage struct {
	cfg        Config
	in         *queue.Promotion[pipeline.Conversation]
	prepared   *queue.Promotion[pipeline.Speech]
	synth      contracts.Synthesizer
	board      *status.Board
	processing atomic.Int32
}

// New constructs the synthesis stage.
func New(cfg Config, synth contracts.Synthesizer, board *status.Board) *Stage {
	return &Stage{
		cfg:      cfg.withDefaults(),
		in:       queue.NewPromotion[pipeline.Conversation](),
		prepared: queue.NewPromotion[pipeline.Speech](),
		synth:    synth,
		board:    board,
	}
}

// Enqueue hands one conversation to synthesis.
func (s *Stage) Enqueue(conv pipeline.Conversation) {
	s.in.Push(conv)
}

// HasCapacity reports whether the prepared queue can absorb more work. The
// reply stage must observe this before dequeuing further questions.
func (s *Stage) HasCapacity() bool {
	return s.prepared.Len() < s.cfg.PreparedCapacity
}

// PendingCount is queued + prepared + in-flight conversations.
func (s *Stage) PendingCount() int {
	return s.in.Len() + s.prepared.Len() + int(s.processing.Load())
}

// HasPrepared reports whether a speech is ready for playback.
func (s *Stage) HasPrepared() bool {
	return s.prepared.Len() > 0
}

// PopPrepared removes the next prepared speech under the promotion rule.
func (s *Stage) PopPrepared() (pipeline.Speech, []pipeline.Speech, bool) {
	return s.prepared.PopNext()
}

// Run executes the synthesis orchestration loop until the context is
// cancelled.
func (s *Stage) Run(ctx context.Context) error {
	for {
		if next, skipped, ok := s.in.PopNext(); ok {
			for _, conv := range skipped {
				s.board.Remove(conv.Question)
				telemetry.DefaultEmitter().EmitLog("info", "skipping auto question",
					map[string]string{"text": conv.Question.Text},
					telemetry.Correlation{Stage: stageName, QuestionID: conv.Question.ID})
			}
			s.processing.Add(1)
			s.process(ctx, next)
			s.processing.Add(-1)
		}
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Stage) process(ctx context.Context, conv pipeline.Conversation) {
	segments := s.buildSegments(conv)
	s.fanOut(ctx, segments)

	if s.waitAllReady(ctx, segments) {
		s.prepared.Push(pipeline.Speech{Conversation: conv, Segments: segments})
		telemetry.DefaultEmitter().EmitMetric(telemetry.MetricQueueDepth, float64(s.prepared.Len()), "count",
			map[string]string{"queue": "prepared"},
			telemetry.Correlation{Stage: stageName})
		return
	}

	telemetry.DefaultEmitter().EmitLog("warn", "speech not ready within deadline, dropped",
		map[string]string{"segments": strconv.Itoa(len(segments))},
		telemetry.Correlation{Stage: stageName, QuestionID: conv.Question.ID})
	telemetry.DefaultEmitter().EmitMetric(telemetry.MetricDroppedItems, 1, "count",
		map[string]string{"reason": "synthesis_deadline"},
		telemetry.Correlation{Stage: stageName})
	s.board.Remove(conv.Question)
}

// buildSegments creates one narrator segment echoing the question followed
// by one presenter segment per reply chunk.
func (s *Stage) buildSegments(conv pipeline.Conversation) []*pipeline.TalkSegment {
	chunks := SplitReply(conv.ReplyText, s.cfg.MaxSegmentLength)
	segments := make([]*pipeline.TalkSegment, 0, len(chunks)+1)
	segments = append(segments, pipeline.NewTalkSegment(
		pipeline.ChannelNarrator, conv.Question.Text, s.cfg.NarratorVolumeScale, s.cfg.NarratorVisualCue, s.cfg.NarratorLabel))
	for _, chunk := range chunks {
		segments = append(segments, pipeline.NewTalkSegment(
			pipeline.ChannelPresenter, chunk, s.cfg.PresenterVolumeScale, conv.VisualCueRef, ""))
	}
	return segments
}

// fanOut issues one concurrent synthesis request per segment. Requests keep
// retrying in the background even if the deadline later abandons the speech.
func (s *Stage) fanOut(ctx context.Context, segments []*pipeline.TalkSegment) {
	for _, seg := range segments {
		voice := s.cfg.PresenterVoice
		if seg.Channel == pipeline.ChannelNarrator {
			voice = s.cfg.NarratorVoice
		}
		go s.synthesizeSegment(ctx, seg, voice)
	}
}

func (s *Stage) waitAllReady(ctx context.Context, segments []*pipeline.TalkSegment) bool {
	polls := int(s.cfg.GenerateTimeout / s.cfg.ReadyPollInterval)
	if polls < 1 {
		polls = 1
	}
	for i := 0; i < polls; i++ {
		if allReady(segments) {
			return true
		}
		if err := sleep(ctx, s.cfg.ReadyPollInterval); err != nil {
			return allReady(segments)
		}
	}
	return allReady(segments)
}

func (s *Stage) synthesizeSegment(ctx context.Context, seg *pipeline.TalkSegment, voice string) {
	if seg.Text == "" {
		return
	}
	text := textnorm.ApplyReplacements(seg.Text, s.cfg.SpeechReplacements)

	backoff := s.cfg.InitialBackoff
	for attempt := 0; attempt < s.cfg.MaxSynthAttempts; attempt++ {
		clip, err := s.synth.Synthesize(ctx, contracts.SpeechRequest{Text: text, VoiceProfile: voice})
		if err == nil && clip != nil {
			seg.SetAudio(clip)
			telemetry.DefaultEmitter().EmitMetric(telemetry.MetricSegmentsSynthesized, 1, "count",
				map[string]string{"voice": voice},
				telemetry.Correlation{Stage: stageName})
			return
		}
		if err == nil {
			err = fmt.Errorf("synthesizer returned no clip")
		}
		telemetry.DefaultEmitter().EmitLog("warn", "segment synthesis failed",
			map[string]string{"attempt": strconv.Itoa(attempt + 1), "voice": voice, "error": err.Error()},
			telemetry.Correlation{Stage: stageName, Capability: "speech"})
		if sleepErr := sleep(ctx, backoff); sleepErr != nil {
			return
		}
		backoff *= 2
	}
	// The segment permanently keeps absent audio; the deadline poll will
	// drop the owning speech.
	telemetry.DefaultEmitter().EmitLog("error", "segment synthesis exhausted attempts",
		map[string]string{"voice": voice},
		telemetry.Correlation{Stage: stageName, Capability: "speech"})
}

// PrepareAdhoc synthesizes ad-hoc operator text into a playable speech using
// the same segment mechanics and deadline, bypassing moderation and reply.
func (s *Stage) PrepareAdhoc(ctx context.Context, text string) (pipeline.Speech, error) {
	chunks := SplitReply(text, s.cfg.MaxSegmentLength)
	segments := make([]*pipeline.TalkSegment, 0, len(chunks))
	for _, chunk := range chunks {
		segments = append(segments, pipeline.NewTalkSegment(
			pipeline.ChannelPresenter, chunk, s.cfg.PresenterVolumeScale, s.cfg.NarratorVisualCue, ""))
	}
	s.fanOut(ctx, segments)
	if !s.waitAllReady(ctx, segments) {
		return pipeline.Speech{}, fmt.Errorf("ad-hoc speech not ready within deadline")
	}
	return pipeline.Speech{Segments: segments}, nil
}

func allReady(segments []*pipeline.TalkSegment) bool {
	for _, seg := range segments {
		if !seg.Ready() {
			return false
		}
	}
	return true
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
