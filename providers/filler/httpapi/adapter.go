// Package httpapi adapts the filler capabilities (default questions and
// template messages) to the backend server.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aituber/presenter-pipeline/providers/common/httpadapter"
)

// Config locates the filler endpoints.
type Config struct {
	DefaultQuestionEndpoint string
	TemplateMessageEndpoint string
	Timeout                 time.Duration
}

// Adapter implements contracts.FillerSource over HTTP.
type Adapter struct {
	cfg    Config
	client *httpadapter.Client
}

// New constructs a filler adapter.
func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.DefaultQuestionEndpoint) == "" || strings.TrimSpace(cfg.TemplateMessageEndpoint) == "" {
		return nil, fmt.Errorf("default-question and template-message endpoints are required")
	}
	return &Adapter{
		cfg:    cfg,
		client: httpadapter.New(httpadapter.Config{Timeout: cfg.Timeout}),
	}, nil
}

// DefaultQuestion fetches one canned FAQ-style question.
func (a *Adapter) DefaultQuestion(ctx context.Context) (string, error) {
	var result struct {
		Question string `json:"question"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, a.cfg.DefaultQuestionEndpoint, nil, &result); err != nil {
		return "", err
	}
	return result.Question, nil
}

// TemplateMessage fetches one canned presenter message.
func (a *Adapter) TemplateMessage(ctx context.Context) (string, error) {
	var result struct {
		Message string `json:"message"`
	}
	if err := a.client.DoJSON(ctx, http.MethodGet, a.cfg.TemplateMessageEndpoint, nil, &result); err != nil {
		return "", err
	}
	return result.Message, nil
}
