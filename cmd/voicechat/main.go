// voicechat is a push-to-talk voice conversation with a local LLM.
//
// Usage:
//
//	voicechat [-mode tui|loop|bridge|history] [-verbose] [-quiet] [-turns N] [-addr :8765] [-session DIR|ID]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hammamikhairi/voicechat/internal/bridge"
	"github.com/hammamikhairi/voicechat/internal/capture"
	"github.com/hammamikhairi/voicechat/internal/config"
	"github.com/hammamikhairi/voicechat/internal/conversation"
	"github.com/hammamikhairi/voicechat/internal/display"
	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/llm"
	"github.com/hammamikhairi/voicechat/internal/logger"
	"github.com/hammamikhairi/voicechat/internal/pipeline"
	"github.com/hammamikhairi/voicechat/internal/robot"
	"github.com/hammamikhairi/voicechat/internal/storage"
	"github.com/hammamikhairi/voicechat/internal/transcribe"
	"github.com/hammamikhairi/voicechat/internal/tts"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env: %v\n", err)
	}

	mode := flag.String("mode", "tui", "tui, loop, bridge or history")
	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".voicechat-logs/voicechat.log", "file to write logs to (use \"stderr\" to log to console)")
	turns := flag.Int("turns", 3, "number of turns in loop mode")
	addr := flag.String("addr", "", "bridge listen address (overrides BRIDGE_ADDR)")
	session := flag.String("session", "", "history mode: session directory, or session id in TURN_DB")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Logs go to a file by default so the TUI stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.BridgeAddr = *addr
	}

	if *mode == "history" {
		if err := printHistory(os.Stdout, cfg, *session, log.Named("LOG")); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*mode, *turns, cfg, log); err != nil {
		log.Error("%v", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a mode needs, wired from config.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	session  *conversation.Session
	convo    *conversation.Coordinator
	capture  *capture.Buffer
	renderer domain.Renderer
	prober   domain.DurationProber
	closers  []func() error
}

func (a *app) close() {
	a.capture.Shutdown()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("close: %v", err)
		}
	}
}

func run(mode string, turns int, cfg config.Config, log *logger.Logger) error {
	switch mode {
	case "tui", "loop", "bridge":
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(cfg, mode, log)
	if err != nil {
		return err
	}
	defer a.close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("received %s, shutting down", sig)
			a.capture.Shutdown()
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("session %s at %s (mode=%s)", a.session.ID, a.session.Dir, mode)

	switch mode {
	case "loop":
		fmt.Println(display.RenderBanner(""))
		return runLoop(ctx, turns, a.capture, a.runner(), os.Stdin, os.Stdout)
	case "bridge":
		return a.bridge(ctx)
	default:
		return a.tui(ctx)
	}
}

func build(cfg config.Config, mode string, log *logger.Logger) (*app, error) {
	policy, err := conversation.ParseHistoryPolicy(cfg.HistoryPolicy)
	if err != nil {
		return nil, err
	}

	session, err := conversation.OpenSession(cfg.SessionsDir, time.Now())
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	buf, err := capture.New(capture.NewDeviceStream(cfg.SampleRate, log.Named("REC")), log.Named("REC"))
	if err != nil {
		return nil, fmt.Errorf("opening microphone: %w", err)
	}

	a := &app{cfg: cfg, log: log, session: session, capture: buf, prober: tts.NewProber()}

	var outputExt string
	a.renderer, outputExt = newRenderer(cfg, mode, log.Named("TTS"))

	var turnLog domain.TurnLog = storage.NewFileLog(session.LogPath, log.Named("LOG"))
	if cfg.TurnDB != "" {
		db, err := storage.OpenBoltLog(cfg.TurnDB, session.ID, log.Named("LOG"))
		if err != nil {
			buf.Shutdown()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		turnLog = storage.NewMirror(turnLog, db, log.Named("LOG"))
		log.Info("mirroring turns to %s", cfg.TurnDB)
	}

	a.convo = conversation.New(
		session,
		newTranscriber(cfg, log.Named("ASR")),
		newReplier(cfg, log.Named("LLM")),
		turnLog,
		log,
		conversation.WithSampleRate(cfg.SampleRate),
		conversation.WithMinUtterance(cfg.MinUtterance),
		conversation.WithHistoryPolicy(policy),
		conversation.WithOutputExt(outputExt),
	)
	return a, nil
}

func newTranscriber(cfg config.Config, log *logger.Logger) domain.Transcriber {
	if cfg.ASRBackend == config.BackendOpenAI {
		log.Info("transcription via %s", cfg.ASREndpoint)
		return transcribe.NewHTTPBackend(cfg.ASREndpoint, cfg.ASRKey, cfg.ASRModel, cfg.WhisperLang, log)
	}
	if _, err := os.Stat(cfg.WhisperModel); err != nil {
		log.Warn("whisper model not found at %s", cfg.WhisperModel)
	}
	log.Info("transcription via %s (model=%s)", cfg.WhisperBin, cfg.WhisperModel)
	return transcribe.NewWhisperCLI(cfg.WhisperBin, cfg.WhisperModel, log,
		transcribe.WithLanguage(cfg.WhisperLang),
		transcribe.WithThreads(cfg.WhisperThreads),
	)
}

func newReplier(cfg config.Config, log *logger.Logger) domain.Replier {
	if cfg.LLMBackend == config.BackendOpenAI {
		log.Info("replies via OpenAI-compatible endpoint (model=%s)", cfg.OpenAIModel)
		return llm.NewOpenAI(cfg.OpenAIEndpoint, cfg.OpenAIKey, log,
			llm.WithModel(cfg.OpenAIModel),
			llm.WithHTTPTimeout(cfg.ReadTimeout),
			llm.WithInstructions(cfg.SystemPrompt),
		)
	}
	log.Info("replies via Ollama %s (model=%s)", cfg.OllamaURL, cfg.OllamaModel)
	return llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel, log,
		llm.WithSystemPrompt(cfg.SystemPrompt),
		llm.WithTimeouts(cfg.ConnectTimeout, cfg.ReadTimeout),
	)
}

// newRenderer picks the speech backend and the extension its files use.
// In bridge mode the robot plays the audio, so nothing is played locally.
func newRenderer(cfg config.Config, mode string, log *logger.Logger) (domain.Renderer, string) {
	playback := mode != "bridge"

	switch cfg.TTSBackend {
	case config.BackendNone:
		return tts.NewNoOp(log), conversation.DefaultOutputExt
	case config.BackendAzure:
		client := tts.NewAzureClient(cfg.AzureKey, cfg.AzureRegion, log, tts.WithVoice(cfg.AzureVoice))
		cache := tts.NewAudioCache(client.Voice(), cfg.TTSCacheDir, true, log)
		var player tts.Playback
		if playback {
			p, err := tts.NewPlayer(tts.AzureSampleRate, 1, log)
			if err != nil {
				log.Error("audio player init failed, replies will not be played: %v", err)
			} else {
				player = p
			}
		}
		log.Info("speech via Azure (voice=%s, region=%s)", client.Voice(), cfg.AzureRegion)
		return tts.NewAzure(client, cache, player, log), ".wav"
	default:
		log.Info("speech via say (voice=%s)", cfg.SayVoice)
		return tts.NewSay(log, tts.WithSayVoice(cfg.SayVoice), tts.WithPlayback(playback)), conversation.DefaultOutputExt
	}
}

func (a *app) runner() *pipeline.Runner {
	return pipeline.New(a.convo, a.capture, a.renderer, a.prober, a.log.Named("TURN"))
}

func (a *app) tui(ctx context.Context) error {
	fmt.Println(display.RenderBanner("Press space to talk, space again to send. q quits."))
	ui := display.NewUI(a.runner(), a.log.Named("UI"))
	if err := ui.Run(ctx); err != nil {
		return fmt.Errorf("display: %w", err)
	}
	return nil
}

func (a *app) bridge(ctx context.Context) error {
	outbox := a.cfg.RobotOutboxDir
	if outbox == "" {
		outbox = filepath.Join(a.session.Dir, "outbox")
	}
	srv := bridge.New(bridge.Deps{
		Turns:      a.convo,
		Capture:    a.capture,
		Jobs:       robot.NewWriter(outbox, a.cfg.RobotName, a.log.Named("ROBOT")),
		Renderer:   a.renderer,
		Prober:     a.prober,
		SessionDir: a.session.Dir,
		StaleAfter: a.cfg.BridgeStale,
	}, a.log.Named("BRIDGE"), a.log.Writer())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(a.cfg.BridgeAddr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge shutdown: %w", err)
	}
	return <-errCh
}
