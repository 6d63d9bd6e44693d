// Command presenter runs the full live-presenter pipeline: chat ingestion,
// moderation, reply generation, speech synthesis, and playback scheduling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/config"
	"github.com/aituber/presenter-pipeline/internal/ingest/chatfeed"
	"github.com/aituber/presenter-pipeline/internal/ingest/csvimport"
	"github.com/aituber/presenter-pipeline/internal/observability/status"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/internal/queue"
	"github.com/aituber/presenter-pipeline/internal/stage/autoquestion"
	"github.com/aituber/presenter-pipeline/internal/stage/moderation"
	"github.com/aituber/presenter-pipeline/internal/stage/playback"
	"github.com/aituber/presenter-pipeline/internal/stage/reply"
	"github.com/aituber/presenter-pipeline/internal/stage/synthesis"
	"github.com/aituber/presenter-pipeline/internal/textnorm"
	fillerhttp "github.com/aituber/presenter-pipeline/providers/filler/httpapi"
	moderationhttp "github.com/aituber/presenter-pipeline/providers/moderation/httpapi"
	replyhttp "github.com/aituber/presenter-pipeline/providers/reply/httpapi"
	speechhttp "github.com/aituber/presenter-pipeline/providers/speech/httpapi"
	speechpolly "github.com/aituber/presenter-pipeline/providers/speech/polly"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the pipeline configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel := telemetry.NewPipeline(telemetry.NewWriterSink(os.Stderr), telemetry.Config{})
	telemetry.SetDefaultEmitter(tel)
	defer tel.Close()

	stopWords, err := config.LoadStopWords(cfg.StopWordDir)
	if err != nil {
		return err
	}

	moderator, err := moderationhttp.New(moderationhttp.Config{Endpoint: cfg.Endpoints.Moderation})
	if err != nil {
		return err
	}
	replier, err := replyhttp.New(replyhttp.Config{Endpoint: cfg.Endpoints.Reply})
	if err != nil {
		return err
	}
	synth, err := buildSynthesizer(cfg)
	if err != nil {
		return err
	}
	filler, err := fillerhttp.New(fillerhttp.Config{
		DefaultQuestionEndpoint: cfg.Endpoints.DefaultQuestion,
		TemplateMessageEndpoint: cfg.Endpoints.TemplateMessage,
	})
	if err != nil {
		return err
	}

	board := status.NewBoard()
	approved := queue.NewPromotion[pipeline.Question]()

	synthStage := synthesis.New(synthesis.Config{
		NarratorVoice:      cfg.Speech.NarratorVoice,
		PresenterVoice:     cfg.Speech.PresenterVoice,
		SpeechReplacements: speechReplacements(cfg),
	}, synth, board)
	moderationStage := moderation.New(moderation.Config{
		MaxBatchSize: cfg.Moderation.MaxBatchSize,
		MaxRetries:   cfg.Moderation.MaxRetries,
	}, moderator, approved, board)
	replyStage := reply.New(reply.Config{StopWords: stopWords}, approved, replier, synthStage, board)
	scheduler := playback.New(playback.Config{}, synthStage, logOutput{}, board)

	if cfg.QuestionCSV != "" {
		if _, err := csvimport.ImportFile(cfg.QuestionCSV, moderationStage); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return moderationStage.Run(ctx) })
	group.Go(func() error { return replyStage.Run(ctx) })
	group.Go(func() error { return synthStage.Run(ctx) })
	group.Go(func() error { return scheduler.Run(ctx) })

	if cfg.Endpoints.ChatFeed != "" {
		feed, err := chatfeed.New(chatfeed.Config{URL: cfg.Endpoints.ChatFeed}, moderationStage)
		if err != nil {
			return err
		}
		group.Go(func() error { return feed.Run(ctx) })
	}

	if cfg.AutoQuestions.Enabled {
		generator := autoquestion.New(autoquestion.Config{
			MinQueueLength: cfg.AutoQuestions.MinQueueLength,
			QuietSeconds:   cfg.AutoQuestions.QuietSeconds,
			QuestionRatio:  cfg.AutoQuestions.QuestionRatio,
		}, filler, approved, synthStage, board, board.Len)
		group.Go(func() error { return generator.Run(ctx) })
	}

	telemetry.DefaultEmitter().EmitLog("info", "pipeline started",
		map[string]string{"config": configPath},
		telemetry.Correlation{Stage: "main"})

	return group.Wait()
}

func buildSynthesizer(cfg config.Config) (contracts.Synthesizer, error) {
	if cfg.Speech.Backend == "polly" {
		return speechpolly.New(speechpolly.Config{
			Region: cfg.Speech.PollyRegion,
			Engine: cfg.Speech.PollyEngine,
			Voices: cfg.Speech.PollyVoices,
		}), nil
	}
	return speechhttp.New(speechhttp.Config{EndpointBase: cfg.Endpoints.Speech})
}

func speechReplacements(cfg config.Config) []textnorm.Replacement {
	rules := make([]textnorm.Replacement, 0, len(cfg.Speech.Replacements))
	for _, r := range cfg.Speech.Replacements {
		rules = append(rules, textnorm.Replacement{From: r.From, To: r.To})
	}
	return rules
}

// logOutput stands in for a real audio device: it holds the segment's slot
// for the clip duration and logs what would be heard. Deployments embed the
// pipeline and provide their own playback.Output.
type logOutput struct{}

func (logOutput) Play(ctx context.Context, seg *pipeline.TalkSegment) error {
	clip := seg.Audio()
	if clip == nil {
		return nil
	}
	telemetry.DefaultEmitter().EmitLog("info", "playing segment",
		map[string]string{
			"channel":  string(seg.Channel),
			"label":    seg.DisplayLabel,
			"duration": clip.Duration.String(),
		},
		telemetry.Correlation{Stage: "playback"})
	if clip.Duration <= 0 {
		return nil
	}
	timer := time.NewTimer(clip.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
