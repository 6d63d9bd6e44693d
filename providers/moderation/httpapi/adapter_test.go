package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aituber/presenter-pipeline/internal/provider/contracts"
	"github.com/aituber/presenter-pipeline/providers/common/httpadapter"
)

func TestModerateSendsBatchAndDecodesApproved(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req contracts.ModerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0] != "ok" {
			t.Errorf("unexpected request %+v", req)
		}
		json.NewEncoder(w).Encode(contracts.ModerationResult{Messages: []string{"ok"}})
	}))
	defer server.Close()

	adapter, err := New(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := adapter.Moderate(context.Background(), contracts.ModerationRequest{Messages: []string{"ok", "bad"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0] != "ok" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestModerateSurfacesStatusErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter, err := New(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = adapter.Moderate(context.Background(), contracts.ModerationRequest{Messages: []string{"x"}})
	var statusErr *httpadapter.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if !httpadapter.Retryable(err) {
		t.Fatalf("503 must be retryable")
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
