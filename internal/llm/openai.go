package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var _ domain.Replier = (*OpenAI)(nil)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
	Model       string        `json:"model,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*OpenAI)

// WithModel overrides the default model name.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAI) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAI) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) OpenAIOption {
	return func(c *OpenAI) { c.maxTokens = n }
}

// WithHTTPTimeout sets the overall request timeout.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAI) { c.http.Timeout = d }
}

// WithInstructions sets the system prompt.
func WithInstructions(p string) OpenAIOption {
	return func(c *OpenAI) { c.system = strings.TrimSpace(p) }
}

// OpenAI talks to an OpenAI-compatible chat-completions endpoint.
type OpenAI struct {
	endpoint    string
	apiKey      string
	model       string
	system      string
	temperature float64
	topP        float64
	maxTokens   int
	http        *http.Client
	log         *logger.Logger
}

// NewOpenAI creates a chat client.
//   - endpoint: full URL to the chat/completions resource
//     (e.g. "https://<resource>.openai.azure.com/openai/deployments/<dep>/chat/completions?api-version=2024-02-01")
//   - apiKey:   the subscription / API key, sent both as api-key and as a
//     bearer token
func NewOpenAI(endpoint, apiKey string, log *logger.Logger, opts ...OpenAIOption) *OpenAI {
	c := &OpenAI{
		endpoint:    endpoint,
		apiKey:      apiKey,
		temperature: 0.7,
		topP:        0.95,
		maxTokens:   400,
		http:        &http.Client{Timeout: DefaultReadTimeout},
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reply sends a chat-completion request and returns the assistant's reply.
func (c *OpenAI) Reply(ctx context.Context, prompt string, history []domain.Message) (string, error) {
	msgs := make([]chatMessage, 0, len(history)+2)
	if c.system != "" {
		msgs = append(msgs, chatMessage{Role: RoleSystem, Content: c.system})
	}
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: wireRole(m.Role), Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: RoleUser, Content: prompt})

	jsonData, err := json.Marshal(chatPayload{
		Messages:    msgs,
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
		Model:       c.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", domain.ErrBackendRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", domain.ErrBackendRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug("POST %s (%d bytes)", c.endpoint, len(jsonData))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error("openai: %s: %s", resp.Status, truncate(string(respBody), 300))
		return "", httpError(resp.StatusCode, respBody)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if result.Error != nil {
		return "", &domain.BackendError{Message: result.Error.Message}
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: no choices", domain.ErrUnexpectedSchema)
	}

	reply := *result.Choices[0].Message.Content
	c.log.Debug("reply (%d chars): %s", len(reply), truncate(reply, 120))
	return reply, nil
}
