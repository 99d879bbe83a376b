package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"zonewatch/internal/config"
	"zonewatch/internal/domain"
	"zonewatch/internal/permanent"
)

func testBroadcast() domain.AlertBroadcast {
	return domain.AlertBroadcast{
		AlertID:   "alert-1",
		Title:     "Flood warning",
		Content:   "River level rising",
		Priority:  domain.PriorityHigh,
		ZoneID:    "zone-a",
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func webhookConfig(url string) config.NotifyConfig {
	return config.NotifyConfig{
		Webhook: config.WebhookNotifier{
			Enabled:  true,
			URL:      url,
			Template: "[{{ upper .Priority }}] {{ .Title }}: {{ .Content }}",
			Retry: config.NotifyRetry{
				Enabled:     true,
				Backoff:     "fixed",
				InitialMS:   1,
				MaxMS:       5,
				MaxAttempts: 3,
			},
		},
	}
}

func TestWebhookBroadcastRendersTemplate(t *testing.T) {
	t.Parallel()

	var received domain.AlertBroadcast
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(webhookConfig(server.URL), nil)
	if got := dispatcher.Channels(); len(got) != 1 || got[0] != config.NotifyChannelWebhook {
		t.Fatalf("unexpected channels: %v", got)
	}

	if _, err := dispatcher.Send(context.Background(), config.NotifyChannelWebhook, testBroadcast()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.Message != "[HIGH] Flood warning: River level rising" {
		t.Fatalf("unexpected rendered message %q", received.Message)
	}
	if received.Channel != config.NotifyChannelWebhook {
		t.Fatalf("expected channel stamp on payload, got %q", received.Channel)
	}
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(webhookConfig(server.URL), nil)
	if _, err := dispatcher.Send(context.Background(), config.NotifyChannelWebhook, testBroadcast()); err != nil {
		t.Fatalf("Send after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestWebhookClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(webhookConfig(server.URL), nil)
	_, err := dispatcher.Send(context.Background(), config.NotifyChannelWebhook, testBroadcast())
	if err == nil {
		t.Fatalf("expected error on 422 response")
	}
	if !permanent.Is(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("permanent error must not be retried, got %d attempts", calls.Load())
	}
}

func TestSendRejectsUnknownChannel(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(config.NotifyConfig{}, nil)
	_, err := dispatcher.Send(context.Background(), "pager", testBroadcast())
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected unknown-channel error, got %v", err)
	}
}

func TestRetryExhaustion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(webhookConfig(server.URL), nil)
	_, err := dispatcher.Send(context.Background(), config.NotifyChannelWebhook, testBroadcast())
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected exhaustion error, got %v", err)
	}
}
