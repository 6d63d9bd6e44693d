// Package chatfeed connects to a live-chat relay over WebSocket and feeds
// incoming comments into the pipeline as audience questions.
package chatfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
)

const stageName = "chatfeed"

// Submitter accepts questions parsed from the feed.
type Submitter interface {
	Submit(q pipeline.Question)
}

// Config locates the relay.
type Config struct {
	// URL is the WebSocket endpoint of the comment relay.
	URL string
	// ReconnectDelay is the wait before redialing after a failure.
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	return c
}

// envelope is the relay's frame shape. Only "comments" frames carry work.
type envelope struct {
	Type string `json:"type"`
	Data struct {
		Comments []struct {
			Data struct {
				LiveID       string `json:"liveId"`
				ID           string `json:"id"`
				Name         string `json:"name"`
				Comment      string `json:"comment"`
				ProfileImage string `json:"profileImage"`
			} `json:"data"`
		} `json:"comments"`
	} `json:"data"`
}

// Feed maintains the relay connection.
type Feed struct {
	cfg  Config
	sink Submitter
}

// New constructs a feed.
func New(cfg Config, sink Submitter) (*Feed, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("chat feed url is required")
	}
	return &Feed{cfg: cfg.withDefaults(), sink: sink}, nil
}

// Run dials the relay and pumps comments until the context is cancelled.
// Connection loss triggers a redial after the configured delay.
func (f *Feed) Run(ctx context.Context) error {
	for {
		if err := f.runOnce(ctx); err != nil {
			telemetry.DefaultEmitter().EmitLog("warn", "chat feed disconnected",
				map[string]string{"error": err.Error()},
				telemetry.Correlation{Stage: stageName})
		}
		if err := sleep(ctx, f.cfg.ReconnectDelay); err != nil {
			return err
		}
	}
}

func (f *Feed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.URL, err)
	}
	defer conn.Close()

	telemetry.DefaultEmitter().EmitLog("info", "chat feed connected",
		map[string]string{"url": f.cfg.URL},
		telemetry.Correlation{Stage: stageName})

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		f.handleFrame(payload)
	}
}

func (f *Feed) handleFrame(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		telemetry.DefaultEmitter().EmitLog("warn", "malformed chat frame",
			map[string]string{"error": err.Error()},
			telemetry.Correlation{Stage: stageName})
		return
	}
	if env.Type != "comments" {
		return
	}
	for _, c := range env.Data.Comments {
		f.sink.Submit(pipeline.NewQuestion(c.Data.Comment, c.Data.Name, c.Data.ProfileImage, false))
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
