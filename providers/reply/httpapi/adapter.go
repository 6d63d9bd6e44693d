// Package httpapi adapts the reply-generation capability to the reply
// endpoint of the backend server.
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

// Config locates the reply endpoint.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Adapter implements contracts.Replier over HTTP.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

// New constructs a reply adapter.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("reply endpoint is required")
	}
	if cfg.Timeout <= 0 {
		// Reply generation routinely takes longer than the default
		// capability timeout.
		cfg.Timeout = 60 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		client: httpadapter.New(httpadapter.Config{Timeout: cfg.Timeout}),
	}, nil
}

// Reply requests an answer for one question text.
func (a *Adapter) Reply(ctx context.Context, req contracts.ReplyRequest) (contracts.ReplyResult, error) {
	var result contracts.ReplyResult
	if err := a.client.DoJSON(ctx, http.MethodPost, a.cfg.Endpoint, req, &result); err != nil {
		return contracts.ReplyResult{}, err
	}
	return result, nil
}
