package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/wavfile"
)

var _ domain.Renderer = (*Azure)(nil)

const (
	// DefaultAzureVoice is used when no voice is configured. Full list:
	// https://learn.microsoft.com/en-us/azure/ai-services/speech-service/language-support
	DefaultAzureVoice = "en-US-AvaNeural"
	// AzureFormat is what the client requests and the player expects.
	AzureFormat = "riff-24khz-16bit-mono-pcm"
	// AzureSampleRate matches AzureFormat.
	AzureSampleRate = 24000
)

// AzureOption configures the Azure client.
type AzureOption func(*AzureClient)

// WithVoice sets the TTS voice.
func WithVoice(voice string) AzureOption {
	return func(c *AzureClient) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithHTTPTimeout sets the HTTP client timeout for synthesis requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) { c.http.Timeout = d }
}

// WithEndpoint overrides the regional endpoint URL.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) { c.endpoint = url }
}

// AzureClient synthesizes speech through Azure Cognitive Services.
type AzureClient struct {
	key      string
	endpoint string
	voice    string
	http     *http.Client
	log      *logger.Logger
}

// NewAzureClient creates a client for the given key and region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		key:      key,
		endpoint: fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voice:    DefaultAzureVoice,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Voice returns the configured voice name.
func (c *AzureClient) Voice() string { return c.voice }

// Synthesize returns WAV bytes for text.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var esc bytes.Buffer
	if err := xml.EscapeText(&esc, []byte(text)); err != nil {
		return nil, fmt.Errorf("tts: escape ssml: %w", err)
	}
	ssml := fmt.Sprintf(`<speak version='1.0' xml:lang='en-US'><voice xml:lang='en-US' name='%s'>%s</voice></speak>`,
		c.voice, esc.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", AzureFormat)
	req.Header.Set("User-Agent", "voicechat/1.0")

	c.log.Debug("azure: synthesizing %d chars with %s", len(text), c.voice)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: azure request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts: azure http %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// synthesizer is the part of AzureClient the renderer needs.
type synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Azure renders replies with an AzureClient. Long replies are split at
// sentence boundaries and synthesized in parallel; the pieces are joined
// into a single WAV at the output path and then played.
type Azure struct {
	tts       synthesizer
	cache     *AudioCache
	player    Playback
	chunkSize int
	log       *logger.Logger
}

// NewAzure creates the renderer. player may be nil to only write files.
func NewAzure(client *AzureClient, cache *AudioCache, player Playback, log *logger.Logger) *Azure {
	return &Azure{tts: client, cache: cache, player: player, chunkSize: 200, log: log}
}

// Render implements domain.Renderer.
func (a *Azure) Render(ctx context.Context, text, outputPath string) error {
	text = cleanForSpeech(text)
	if text == "" {
		return nil
	}

	chunks := splitChunks(text, a.chunkSize)
	a.log.Debug("synthesizing %d chunk(s) for %s", len(chunks), outputPath)

	type result struct {
		idx  int
		clip *wavfile.Clip
		err  error
	}
	results := make(chan result, len(chunks))
	for i, chunk := range chunks {
		go func(idx int, text string) {
			clip, err := a.synthesize(ctx, text)
			results <- result{idx: idx, clip: clip, err: err}
		}(i, chunk)
	}

	clips := make([]*wavfile.Clip, len(chunks))
	var firstErr error
	failed := 0
	for range chunks {
		r := <-results
		if r.err != nil {
			a.log.Error("chunk %d synthesis failed: %v", r.idx, r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			failed++
			continue
		}
		clips[r.idx] = r.clip
	}

	joined, err := join(clips)
	if err != nil {
		if firstErr != nil {
			return firstErr
		}
		return err
	}
	if err := wavfile.WriteClip(outputPath, joined); err != nil {
		return fmt.Errorf("tts: %w", err)
	}
	if a.player != nil {
		if err := a.player.Play(joined); err != nil {
			return fmt.Errorf("tts: play: %w", err)
		}
	}
	// What synthesized is still written and played; the caller learns the
	// reply was cut short.
	if firstErr != nil {
		return fmt.Errorf("tts: %d of %d chunks missing: %w", failed, len(chunks), firstErr)
	}
	return nil
}

func (a *Azure) synthesize(ctx context.Context, text string) (*wavfile.Clip, error) {
	data, ok := a.cache.Get(text)
	if !ok {
		var err error
		if data, err = a.tts.Synthesize(ctx, text); err != nil {
			return nil, err
		}
		a.cache.Put(text, data)
	}
	return wavfile.Decode(bytes.NewReader(data))
}

// join concatenates the clips that synthesized, in order. They must share
// a format.
func join(clips []*wavfile.Clip) (*wavfile.Clip, error) {
	var out *wavfile.Clip
	for _, c := range clips {
		if c == nil {
			continue
		}
		if out == nil {
			out = &wavfile.Clip{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.BitDepth}
		} else if c.SampleRate != out.SampleRate || c.Channels != out.Channels || c.BitDepth != out.BitDepth {
			return nil, fmt.Errorf("tts: chunk format %d Hz/%d ch/%d bit differs from %d Hz/%d ch/%d bit",
				c.SampleRate, c.Channels, c.BitDepth, out.SampleRate, out.Channels, out.BitDepth)
		}
		out.Samples = append(out.Samples, c.Samples...)
	}
	if out == nil {
		return nil, fmt.Errorf("tts: no audio synthesized")
	}
	return out, nil
}
