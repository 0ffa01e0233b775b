package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var quiet = logger.New(logger.LevelOff, nil)

func TestOllamaSendsHistoryAndPrompt(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"hi there"},"done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL+"/", "llama3", quiet, WithSystemPrompt("Be brief."))
	history := []domain.Message{
		{Role: domain.RoleParticipant, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hey"},
	}
	reply, err := c.Reply(context.Background(), "how are you", history)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply != "hi there" {
		t.Fatalf("reply = %q", reply)
	}

	if got.Model != "llama3" || got.Stream {
		t.Fatalf("unexpected payload header fields: %+v", got)
	}
	want := []ollamaMessage{
		{"system", "Be brief."},
		{"user", "hello"},
		{"assistant", "hey"},
		{"user", "how are you"},
	}
	if len(got.Messages) != len(want) {
		t.Fatalf("messages = %+v", got.Messages)
	}
	for i := range want {
		if got.Messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], want[i])
		}
	}
}

func TestOllamaFailureCategories(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantIs   error
		wantHTTP int
		wantBack bool
	}{
		{name: "http 500", status: 500, body: "boom", wantHTTP: 500},
		{name: "http 404 with error json", status: 404, body: `{"error":"model 'x' not found"}`, wantHTTP: 404},
		{name: "html page", status: 200, body: "<html>oops</html>", wantIs: domain.ErrMalformedResponse},
		{name: "error field", status: 200, body: `{"error":"model not loaded"}`, wantBack: true},
		{name: "no message", status: 200, body: `{"done":true}`, wantIs: domain.ErrUnexpectedSchema},
		{name: "message without content", status: 200, body: `{"message":{"role":"assistant"}}`, wantIs: domain.ErrUnexpectedSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllama(srv.URL, "m", quiet).Reply(context.Background(), "hi", nil)
			if err == nil {
				t.Fatal("expected error")
			}
			switch {
			case tt.wantIs != nil:
				if !errors.Is(err, tt.wantIs) {
					t.Fatalf("expected %v, got %v", tt.wantIs, err)
				}
			case tt.wantHTTP != 0:
				var he *domain.HTTPError
				if !errors.As(err, &he) || he.StatusCode != tt.wantHTTP {
					t.Fatalf("expected HTTPError %d, got %v", tt.wantHTTP, err)
				}
			case tt.wantBack:
				var be *domain.BackendError
				if !errors.As(err, &be) || be.Message != "model not loaded" {
					t.Fatalf("expected BackendError, got %v", err)
				}
			}
		})
	}
}

func TestOllamaConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOllama(url, "m", quiet).Reply(context.Background(), "hi", nil)
	if !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestOllamaReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewOllama(srv.URL, "m", quiet, WithTimeouts(time.Second, 50*time.Millisecond))
	_, err := c.Reply(context.Background(), "hi", nil)
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestOllamaContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewOllama(srv.URL, "m", quiet).Reply(ctx, "hi", nil)
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestClassifyTransportOther(t *testing.T) {
	err := classifyTransport(errors.New("tls: handshake failure"))
	if !errors.Is(err, domain.ErrBackendRequest) {
		t.Fatalf("expected ErrBackendRequest, got %v", err)
	}
}
