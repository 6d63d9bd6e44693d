// Package moderation drains raw submitted questions in batches, sends each
// batch to the moderation capability with bounded backoff retry, and pushes
// approved questions downstream.
package moderation

import (
	"context"
	"strconv"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
)

const stageName = "moderation"

// Config tunes the moderation loop.
type Config struct {
	// MaxBatchSize caps how many pending questions one request carries.
	MaxBatchSize int
	// MaxRetries bounds attempts per batch before the batch is dropped.
	MaxRetries int
	// InitialBackoff is the first retry delay; it doubles per attempt.
	InitialBackoff time.Duration
	// IdleInterval is the wait after every cycle. Zero means loop again
	// immediately once the queue has items.
	IdleInterval time.Duration
	// EmptyPollInterval is the wait when a cycle found nothing to send.
	EmptyPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize < 1 {
		c.MaxBatchSize = 10
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.EmptyPollInterval <= 0 {
		c.EmptyPollInterval = 100 * time.Millisecond
	}
	return c
}

// Stage owns the raw input queue and feeds the reply stage's approved queue.
type Stage struct {
	cfg       Config
	in        *queue.FIFO[pipeline.Question]
	out       *queue.Promotion[pipeline.Question]
	moderator contracts.Moderator
	board     *status.Board
}

// New constructs the moderation stage. The stage owns in; producers call
// Submit.
func New(cfg Config, moderator contracts.Moderator, out *queue.Promotion[pipeline.Question], board *status.Board) *Stage {
	return &Stage{
		cfg:       cfg.withDefaults(),
		in:        queue.NewFIFO[pipeline.Question](),
		out:       out,
		moderator: moderator,
		board:     board,
	}
}

// Submit is the single ingestion entry point. Questions with empty text are
// ignored.
func (s *Stage) Submit(q pipeline.Question) {
	if q.Text == "" {
		return
	}
	s.in.Push(q)
	telemetry.DefaultEmitter().EmitLog("debug", "question submitted",
		map[string]string{"author": q.AuthorName, "auto": strconv.FormatBool(q.IsAutoGenerated)},
		telemetry.Correlation{Stage: stageName, QuestionID: q.ID})
}

// InputLen returns the raw input queue depth.
func (s *Stage) InputLen() int {
	return s.in.Len()
}

// Run executes the moderation loop until the context is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	for {
		batch := s.in.PopBatch(s.cfg.MaxBatchSize)
		if len(batch) > 0 {
			s.processBatch(ctx, batch)
		}

		wait := s.cfg.IdleInterval
		if len(batch) == 0 && wait < s.cfg.EmptyPollInterval {
			wait = s.cfg.EmptyPollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Stage) processBatch(ctx context.Context, batch []pipeline.Question) {
	texts := make([]string, len(batch))
	for i, q := range batch {
		texts[i] = q.Text
	}

	backoff := s.cfg.InitialBackoff
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		// Each retry re-sends the identical batch.
		result, err := s.moderator.Moderate(ctx, contracts.ModerationRequest{Messages: texts})
		if err != nil {
			telemetry.DefaultEmitter().EmitLog("warn", "moderation request failed",
				map[string]string{"attempt": strconv.Itoa(attempt + 1), "error": err.Error(), "retry_in": backoff.String()},
				telemetry.Correlation{Stage: stageName, Capability: "moderation"})
			telemetry.DefaultEmitter().EmitMetric(telemetry.MetricRetryAttempts, 1, "count",
				map[string]string{"capability": "moderation"},
				telemetry.Correlation{Stage: stageName})
			if sleepErr := sleep(ctx, backoff); sleepErr != nil {
				return
			}
			backoff *= 2
			continue
		}

		approved := 0
		for _, text := range result.Messages {
			// First match wins: duplicate texts in one batch are
			// conflated onto the earliest question.
			for _, q := range batch {
				if q.Text == text {
					s.out.Push(q)
					s.board.Append(q)
					approved++
					break
				}
			}
		}
		telemetry.DefaultEmitter().EmitLog("info", "moderation batch processed",
			map[string]string{"sent": strconv.Itoa(len(batch)), "approved": strconv.Itoa(approved)},
			telemetry.Correlation{Stage: stageName, Capability: "moderation"})
		return
	}

	telemetry.DefaultEmitter().EmitLog("error", "moderation retries exhausted, batch dropped",
		map[string]string{"dropped": strconv.Itoa(len(batch))},
		telemetry.Correlation{Stage: stageName, Capability: "moderation"})
	telemetry.DefaultEmitter().EmitMetric(telemetry.MetricDroppedItems, float64(len(batch)), "count",
		map[string]string{"reason": "moderation_retries_exhausted"},
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
