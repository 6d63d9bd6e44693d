// Package autoquestion keeps the presenter talking during quiet stretches.
// It samples the pipeline's pending workload over fixed windows and, once a
// window sees the workload dip below the minimum, injects either a canned
// audience-style question or a ready-made presenter message.
package autoquestion

import (
	"context"
	"math/rand"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
)

const stageName = "autoquestion"

// SpeechSink receives template messages as ready conversations, bypassing
// moderation and reply.
type SpeechSink interface {
	Enqueue(conv pipeline.Conversation)
}

// Config tunes the quiet-period detector.
type Config struct {
	// MinQueueLength is the pending-count threshold. A window with every
	// sample at or above it injects nothing.
	MinQueueLength int
	// QuietSeconds is the length of one sampling window.
	QuietSeconds int
	// SampleInterval is the pending-count sampling cadence.
	SampleInterval time.Duration
	// SamplesPerSecond converts QuietSeconds into a sample budget.
	SamplesPerSecond int
	// QuestionRatio is the probability of injecting a question rather
	// than a template message.
	QuestionRatio float64
	// AuthorName is attached to injected questions.
	AuthorName string
	// VisualCue is attached to injected template messages.
	VisualCue string
	// RetryDelay is the wait after a failed filler fetch. Fetches retry
	// without an attempt bound.
	RetryDelay time.Duration
	// Rand returns a value in [0, 1). Defaults to math/rand.
	Rand func() float64
}

func (c Config) withDefaults() Config {
	if c.MinQueueLength < 1 {
		c.MinQueueLength = 5
	}
	if c.QuietSeconds < 1 {
		c.QuietSeconds = 15
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = 100 * time.Millisecond
	}
	if c.SamplesPerSecond < 1 {
		c.SamplesPerSecond = 10
	}
	if c.QuestionRatio <= 0 {
		c.QuestionRatio = 0.8
	}
	if c.AuthorName == "" {
		c.AuthorName = "名無しさん"
	}
	if c.VisualCue == "" {
		c.VisualCue = "slide_1"
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
	return c
}

// Generator injects filler content when the pipeline runs dry.
type Generator struct {
	cfg      Config
	source   contracts.FillerSource
	approved *queue.Promotion[pipeline.Question]
	speeches SpeechSink
	board    *status.Board
	pending  func() int
}

// New constructs the generator. pending reports the live workload the
// detector samples.
func New(cfg Config, source contracts.FillerSource, approved *queue.Promotion[pipeline.Question], speeches SpeechSink, board *status.Board, pending func() int) *Generator {
	return &Generator{
		cfg:      cfg.withDefaults(),
		source:   source,
		approved: approved,
		speeches: speeches,
		board:    board,
		pending:  pending,
	}
}

// Run executes the quiet-period loop until the context is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	for {
		if err := g.awaitQuiet(ctx); err != nil {
			return err
		}
		if err := g.inject(ctx); err != nil {
			return err
		}
	}
}

// awaitQuiet blocks until a full sampling window saw the pending count dip
// below the threshold at least once. Each window runs to completion; one
// where every sample stayed at or above the threshold starts the next.
func (g *Generator) awaitQuiet(ctx context.Context) error {
	samples := g.cfg.QuietSeconds * g.cfg.SamplesPerSecond
	for {
		sawLow := false
		for i := 0; i < samples; i++ {
			if g.pending() < g.cfg.MinQueueLength {
				sawLow = true
			}
			if err := sleep(ctx, g.cfg.SampleInterval); err != nil {
				return err
			}
		}
		if sawLow {
			return nil
		}
	}
}

func (g *Generator) inject(ctx context.Context) error {
	if g.cfg.Rand() < g.cfg.QuestionRatio {
		return g.injectQuestion(ctx)
	}
	return g.injectMessage(ctx)
}

// injectQuestion puts a canned question straight onto the approved queue;
// it takes the full reply and synthesis path from there.
func (g *Generator) injectQuestion(ctx context.Context) error {
	for {
		text, err := g.source.DefaultQuestion(ctx)
		if err == nil {
			q := pipeline.NewQuestion(text, g.cfg.AuthorName, "", true)
			g.approved.Push(q)
			g.board.Append(q)
			telemetry.DefaultEmitter().EmitLog("info", "auto question injected",
				map[string]string{"text": text},
				telemetry.Correlation{Stage: stageName, QuestionID: q.ID})
			return nil
		}
		telemetry.DefaultEmitter().EmitLog("warn", "default question fetch failed",
			map[string]string{"error": err.Error()},
			telemetry.Correlation{Stage: stageName, Capability: "filler"})
		if sleepErr := sleep(ctx, g.cfg.RetryDelay); sleepErr != nil {
			return sleepErr
		}
	}
}

// injectMessage hands a template message directly to synthesis as a finished
// conversation with no narrator text.
func (g *Generator) injectMessage(ctx context.Context) error {
	for {
		text, err := g.source.TemplateMessage(ctx)
		if err == nil {
			g.speeches.Enqueue(pipeline.Conversation{
				Question:     pipeline.NewQuestion("", "", "", true),
				ReplyText:    text,
				VisualCueRef: g.cfg.VisualCue,
			})
			telemetry.DefaultEmitter().EmitLog("info", "template message injected",
				map[string]string{"text": text},
				telemetry.Correlation{Stage: stageName})
			return nil
		}
		telemetry.DefaultEmitter().EmitLog("warn", "template message fetch failed",
			map[string]string{"error": err.Error()},
			telemetry.Correlation{Stage: stageName, Capability: "filler"})
		if sleepErr := sleep(ctx, g.cfg.RetryDelay); sleepErr != nil {
			return sleepErr
		}
	}
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
