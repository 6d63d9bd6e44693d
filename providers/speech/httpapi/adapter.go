// Package httpapi adapts the speech-synthesis capability to the voice
// server. The server keys the voice on a path suffix and the text on a query
// parameter, and answers with raw WAV bytes; a 422 validation response is a
// retryable failure like any transport error.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/audio"
	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/providers/common/httpadapter"
)

// Config locates the voice endpoint base, e.g. "http://host/voice/".
type Config struct {
	EndpointBase string
	ModelID      string
	Timeout      time.Duration
}

// Adapter implements contracts.Synthesizer over HTTP.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

// New constructs a speech adapter.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.EndpointBase) == "" {
		return nil, fmt.Errorf("speech endpoint base is required")
	}
	if !strings.HasSuffix(cfg.EndpointBase, "/") {
		cfg.EndpointBase += "/"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: httpadapter.New(httpadapter.Config{Timeout: cfg.Timeout}),
	}, nil
}

// Synthesize requests audio for one segment text in the given voice profile.
func (a *Adapter) Synthesize(ctx context.Context, req contracts.SpeechRequest) (*pipeline.Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("speech text is required")
	}
	if req.VoiceProfile == "" {
		return nil, fmt.Errorf("voice profile is required")
	}

	endpoint := a.cfg.EndpointBase + url.PathEscape(req.VoiceProfile)
	endpoint, err := httpadapter.WithQuery(endpoint, "text", req.Text)
	if err != nil {
		return nil, err
	}
	endpoint, err = httpadapter.WithQuery(endpoint, "model_id", a.cfg.ModelID)
	if err != nil {
		return nil, err
	}

	payload, err := a.client.DoRaw(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return audio.ClipFromWAV(payload)
}
