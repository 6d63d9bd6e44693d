// Package reply pulls approved questions (audience first), obtains an answer
// from the reply capability or a canned shortcut, normalizes it, and hands
// the conversation to synthesis, but only while synthesis has spare capacity.
package reply

import (
	"context"
	"strconv"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
	"github.com/aituber/presenter-pipeline/internal/textnorm"
)

const stageName = "reply"

// Sink is the synthesis-stage surface the reply stage needs: capacity
// observation and conversation handoff.
type Sink interface {
	HasCapacity() bool
	Enqueue(conv pipeline.Conversation)
}

// Config tunes the reply loop.
type Config struct {
	// TriggerPhrases bypass the reply capability when contained in the
	// question text.
	TriggerPhrases []string
	// CannedReply is spoken for trigger-phrase questions.
	CannedReply string
	// CannedReplyDelay models the cheap deterministic shortcut's latency.
	CannedReplyDelay time.Duration
	// CannedVisualCue is the visual cue for canned replies.
	CannedVisualCue string
	// StopWords is the banned-word list checked against normalized replies.
	StopWords []string
	// MaxRetries bounds reply attempts per question.
	MaxRetries int
	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration
	// PollInterval is the wait between loop cycles.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if len(c.TriggerPhrases) == 0 {
		c.TriggerPhrases = []string{"ほしい", "欲しい"}
	}
	if c.CannedReply == "" {
		c.CannedReply = "なるほどですね！皆さんの声を聞かせていただき、ありがとうございます"
	}
	if c.CannedReplyDelay <= 0 {
		c.CannedReplyDelay = time.Second
	}
	if c.CannedVisualCue == "" {
		c.CannedVisualCue = "slide_1"
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	return c
}

// Stage owns the approved-question queue.
type Stage struct {
	cfg     Config
	in      *queue.Promotion[pipeline.Question]
	sink    Sink
	replier contracts.Replier
	board   *status.Board
}

// New constructs the reply stage around its input queue.
func New(cfg Config, in *queue.Promotion[pipeline.Question], replier contracts.Replier, sink Sink, board *status.Board) *Stage {
	return &Stage{
		cfg:     cfg.withDefaults(),
		in:      in,
		sink:    sink,
		replier: replier,
		board:   board,
	}
}

// Run executes the reply loop until the context is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	for {
		if s.in.Len() > 0 && s.sink.HasCapacity() {
			if next, skipped, ok := s.in.PopNext(); ok {
				s.dropSkipped(skipped)
				s.process(ctx, next)
			}
		}
		if err := sleep(ctx, s.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (s *Stage) dropSkipped(skipped []pipeline.Question) {
	for _, q := range skipped {
		s.board.Remove(q)
		telemetry.DefaultEmitter().EmitLog("info", "skipping auto question",
			map[string]string{"text": q.Text},
			telemetry.Correlation{Stage: stageName, QuestionID: q.ID})
	}
}

func (s *Stage) process(ctx context.Context, q pipeline.Question) {
	if textnorm.ContainsAny(q.Text, s.cfg.TriggerPhrases) {
		if err := sleep(ctx, s.cfg.CannedReplyDelay); err != nil {
			return
		}
		s.sink.Enqueue(pipeline.Conversation{
			Question:     q,
			ReplyText:    s.cfg.CannedReply,
			VisualCueRef: s.cfg.CannedVisualCue,
		})
		return
	}

	backoff := s.cfg.InitialBackoff
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		result, err := s.replier.Reply(ctx, contracts.ReplyRequest{InputText: q.Text})
		if err != nil {
			telemetry.DefaultEmitter().EmitLog("warn", "reply request failed",
				map[string]string{"attempt": strconv.Itoa(attempt + 1), "error": err.Error()},
				telemetry.Correlation{Stage: stageName, QuestionID: q.ID, Capability: "reply"})
			telemetry.DefaultEmitter().EmitMetric(telemetry.MetricRetryAttempts, 1, "count",
				map[string]string{"capability": "reply"},
				telemetry.Correlation{Stage: stageName})
			if sleepErr := sleep(ctx, backoff); sleepErr != nil {
				return
			}
			backoff *= 2
			continue
		}

		normalized := textnorm.Canonicalize(result.ReplyText)
		// The stop-word branches perform the identical action on purpose;
		// only the log line differs. Do not add suppression here.
		if textnorm.ContainsAny(normalized, s.cfg.StopWords) {
			telemetry.DefaultEmitter().EmitLog("info", "reply contains stop word",
				map[string]string{"reply": normalized},
				telemetry.Correlation{Stage: stageName, QuestionID: q.ID})
		} else {
			telemetry.DefaultEmitter().EmitLog("info", "reply clean of stop words",
				map[string]string{"reply": normalized},
				telemetry.Correlation{Stage: stageName, QuestionID: q.ID})
		}
		s.sink.Enqueue(pipeline.Conversation{
			Question:     q,
			ReplyText:    normalized,
			VisualCueRef: result.VisualCueRef,
		})
		return
	}

	telemetry.DefaultEmitter().EmitLog("error", "reply retries exhausted, question dropped",
		map[string]string{"text": q.Text},
		telemetry.Correlation{Stage: stageName, QuestionID: q.ID, Capability: "reply"})
	telemetry.DefaultEmitter().EmitMetric(telemetry.MetricDroppedItems, 1, "count",
		map[string]string{"reason": "reply_retries_exhausted"},
		telemetry.Correlation{Stage: stageName})
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
