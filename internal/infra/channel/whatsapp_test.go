package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/asherv/martpal-go/internal/infra/resilience"
)

func newWhatsAppTestSender(t *testing.T, handler http.Handler) *WhatsAppSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewWhatsAppSender(
		srv.Client(),
		srv.URL,
		"instance42",
		"secret-token",
		resilience.NewCircuitBreaker("whatsapp-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func TestWhatsAppSend_PostsChatMessage(t *testing.T) {
	var got ultraMsgRequest
	var gotPath string
	s := newWhatsAppTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"sent": "true", "message": "ok"})
	}))

	if err := s.Send(context.Background(), "+5511999999999", "Hi Ana"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotPath != "/instance42/messages/chat" {
		t.Errorf("got path %q", gotPath)
	}
	if got.Token != "secret-token" || got.To != "+5511999999999" || got.Body != "Hi Ana" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestWhatsAppSend_APIError(t *testing.T) {
	s := newWhatsAppTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid token"})
	}))

	if err := s.Send(context.Background(), "+100", "hi"); err == nil {
		t.Fatal("expected error for API-level failure")
	}
}

func TestWhatsAppSend_Non2xx(t *testing.T) {
	s := newWhatsAppTestSender(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	if err := s.Send(context.Background(), "+100", "hi"); err == nil {
		t.Fatal("expected error for 502")
	}
}
