// Package httpapi adapts the moderation capability to the filtering endpoint
// of the backend server.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/providers/common/httpadapter"
)

// Config locates the filtering endpoint.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Adapter implements contracts.Moderator over HTTP.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

// New constructs a moderation adapter.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("moderation endpoint is required")
	}
	return &Adapter{
		cfg:    cfg,
		client: httpadapter.New(httpadapter.Config{Timeout: cfg.Timeout}),
	}, nil
}

// Moderate sends one batch and returns the approved subset.
func (a *Adapter) Moderate(ctx context.Context, req contracts.ModerationRequest) (contracts.ModerationResult, error) {
	var result contracts.ModerationResult
	if err := a.client.DoJSON(ctx, http.MethodPost, a.cfg.Endpoint, req, &result); err != nil {
		return contracts.ModerationResult{}, err
	}
	return result, nil
}
