// Package llm provides reply producers backed by chat-completion HTTP APIs.
// Every failure is reported as one of the backend categories in domain so
// the conversation can substitute a readable placeholder.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

// Compile-time interface check.
var _ domain.Replier = (*Ollama)(nil)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 120 * time.Second
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// OllamaOption configures an Ollama client.
type OllamaOption func(*Ollama)

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(p string) OllamaOption {
	return func(o *Ollama) { o.system = strings.TrimSpace(p) }
}

// WithTimeouts sets the connect timeout and the time allowed for the model
// to start answering.
func WithTimeouts(connect, read time.Duration) OllamaOption {
	return func(o *Ollama) {
		o.connect = connect
		o.read = read
	}
}

// Ollama talks to a local Ollama server's /api/chat endpoint.
type Ollama struct {
	url     string
	model   string
	system  string
	connect time.Duration
	read    time.Duration
	http    *http.Client
	log     *logger.Logger
}

// NewOllama creates a client for the server at baseURL
// (e.g. "http://localhost:11434").
func NewOllama(baseURL, model string, log *logger.Logger, opts ...OllamaOption) *Ollama {
	o := &Ollama{
		url:     strings.TrimRight(baseURL, "/") + "/api/chat",
		model:   model,
		connect: DefaultConnectTimeout,
		read:    DefaultReadTimeout,
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.http = &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: o.connect}).DialContext,
		ResponseHeaderTimeout: o.read,
	}}
	return o
}

// Reply sends the history plus prompt and returns the model's answer.
func (o *Ollama) Reply(ctx context.Context, prompt string, history []domain.Message) (string, error) {
	msgs := make([]ollamaMessage, 0, len(history)+2)
	if o.system != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: o.system})
	}
	for _, m := range history {
		msgs = append(msgs, ollamaMessage{Role: wireRole(m.Role), Content: m.Content})
	}
	msgs = append(msgs, ollamaMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(ollamaRequest{Model: o.model, Messages: msgs, Stream: false})
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", domain.ErrBackendRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrBackendRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	o.log.Debug("POST %s model=%s messages=%d", o.url, o.model, len(msgs))

	resp, err := o.http.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		o.log.Error("ollama: %s: %s", resp.Status, truncate(string(raw), 300))
		return "", httpError(resp.StatusCode, raw)
	}

	return parseOllama(raw)
}

// parseOllama extracts message.content, or the server's own error field.
func parseOllama(raw []byte) (string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return "", fmt.Errorf("%w: %v (body %q)", domain.ErrMalformedResponse, err, truncate(string(raw), 120))
	}

	if m, ok := top["message"]; ok {
		var msg struct {
			Content *string `json:"content"`
		}
		if err := json.Unmarshal(m, &msg); err == nil && msg.Content != nil {
			return *msg.Content, nil
		}
	}

	if e, ok := top["error"]; ok {
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			s = string(e)
		}
		return "", &domain.BackendError{Message: s}
	}

	return "", fmt.Errorf("%w: %s", domain.ErrUnexpectedSchema, truncate(string(raw), 200))
}

// wireRole maps history roles to chat API roles.
func wireRole(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "assistant"
	}
	return "user"
}
