package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

var _ domain.Transcriber = (*HTTPBackend)(nil)

// HTTPBackend uploads the utterance to an OpenAI-compatible
// /v1/audio/transcriptions endpoint (OpenAI, a local whisper server, ...).
type HTTPBackend struct {
	endpoint string
	apiKey   string
	model    string
	lang     string
	tempDir  string
	http     *http.Client
	log      *logger.Logger
}

// NewHTTPBackend creates a transcriber posting to endpoint, the full URL of
// the transcriptions resource.
func NewHTTPBackend(endpoint, apiKey, model, lang string, log *logger.Logger) *HTTPBackend {
	return &HTTPBackend{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		lang:     lang,
		http:     &http.Client{Timeout: 60 * time.Second},
		log:      log,
	}
}

type transcriptionResp struct {
	Text string `json:"text"`
}

// Transcribe implements domain.Transcriber.
func (h *HTTPBackend) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	path, cleanup, err := writeTemp(h.tempDir, samples, sampleRate)
	if err != nil {
		return "", err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("transcribe: open %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", h.model); err != nil {
		return "", err
	}
	if h.lang != "" && h.lang != "auto" {
		if err := mw.WriteField("language", h.lang); err != nil {
			return "", err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("transcribe: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("transcribe: create request: %w", err)
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("transcribe: http %d: %s", resp.StatusCode, string(b))
	}
	var out transcriptionResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}

	text := Clean(out.Text)
	h.log.Debug("remote transcription took %s: %q", time.Since(start).Round(time.Millisecond), text)
	return text, nil
}
