// Package bridge exposes the turn protocol over HTTP so a robot on the LAN
// can drive push-to-talk: /start and /stop bracket the participant's
// speech, /reply fetches the answer and /finalize closes the turn once the
// robot has spoken it.
package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hammamikhairi/voicechat/internal/domain"
	"github.com/hammamikhairi/voicechat/internal/logger"
)

// Capture is the push-to-talk input.
type Capture interface {
	Start()
	Stop() []float32
	Armed() bool
}

// Turns is the conversation coordinator.
type Turns interface {
	Transcribe(ctx context.Context, samples []float32) (int, string, error)
	Reply(ctx context.Context, id int, text string) (string, string)
	Finalize(ctx context.Context, id int, aiDur *float64) error
	Abandon(id int) error
	Pending() (domain.TurnRecord, bool)
}

// JobWriter drops participant-input jobs for the robot.
type JobWriter interface {
	WriteInputJob(turnID int, participantText, inputAudioPath string, duration *float64) (string, error)
	Dir() string
}

// Deps are the collaborators the bridge drives. Jobs, Renderer and Prober
// are optional.
//
// StaleAfter bounds how long a turn may stay open after /stop: the next
// /start past that age abandons it. Zero keeps the turn until /finalize or
// /abandon.
type Deps struct {
	Turns      Turns
	Capture    Capture
	Jobs       JobWriter
	Renderer   domain.Renderer
	Prober     domain.DurationProber
	SessionDir string
	StaleAfter time.Duration
	Now        func() time.Time
}

// Server is the HTTP bridge.
type Server struct {
	e    *echo.Echo
	deps Deps
	log  *logger.Logger

	// mu serialises every call into Turns; the coordinator is single-writer.
	mu       sync.Mutex
	inFlight atomic.Bool
	since    time.Time
}

type errorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	TurnID int    `json:"turn_id,omitempty"`
}

type startResponse struct {
	OK      bool `json:"ok"`
	Already bool `json:"already,omitempty"`
}

type stopResponse struct {
	OK         bool   `json:"ok"`
	TurnID     int    `json:"turn_id"`
	Transcript string `json:"transcript"`
	SessionDir string `json:"session_dir"`
	OutboxDir  string `json:"outbox_dir"`
	JobPath    string `json:"job_path,omitempty"`
}

type replyRequest struct {
	TurnID int `json:"turn_id"`
}

type replyResponse struct {
	OK            bool     `json:"ok"`
	TurnID        int      `json:"turn_id"`
	Reply         string   `json:"reply"`
	OutputPath    *string  `json:"output_path"`
	AIDurationSec *float64 `json:"ai_duration_sec"`
}

type finalizeRequest struct {
	TurnID        int      `json:"turn_id"`
	AIDurationSec *float64 `json:"ai_duration_sec"`
}

// New builds the bridge. Access logs go to accessLog (nil discards them).
func New(deps Deps, log *logger.Logger, accessLog io.Writer) *Server {
	if accessLog == nil {
		accessLog = io.Discard
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human}\n",
		Output: accessLog,
	}))
	e.Use(middleware.Recover())

	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Server{e: e, deps: deps, log: log}
	e.GET("/healthz", s.healthz)
	e.POST("/start", s.start)
	e.POST("/stop", s.stop)
	e.POST("/reply", s.reply)
	e.POST("/finalize", s.finalize)
	e.POST("/abandon", s.abandon)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("listening on %s", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) start(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight.Load() {
		if id, held := s.holdGate(); held {
			return c.JSON(http.StatusConflict, errorResponse{Error: "turn_in_flight", TurnID: id})
		}
	}
	if s.deps.Capture.Armed() {
		return c.JSON(http.StatusOK, startResponse{OK: true, Already: true})
	}
	s.deps.Capture.Start()
	s.log.Debug("recording started via /start")
	return c.JSON(http.StatusOK, startResponse{OK: true})
}

func (s *Server) stop(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.deps.Capture.Armed() {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "not_listening"})
	}
	samples := s.deps.Capture.Stop()
	s.inFlight.Store(true)
	s.since = s.deps.Now()

	id, text, err := s.deps.Turns.Transcribe(c.Request().Context(), samples)
	if err != nil {
		s.inFlight.Store(false)
		s.log.Error("turn %d: %v", id, err)
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "transcription_failed", TurnID: id})
	}

	resp := stopResponse{OK: true, TurnID: id, Transcript: text, SessionDir: s.deps.SessionDir}
	if s.deps.Jobs != nil {
		resp.OutboxDir = s.deps.Jobs.Dir()
		p, _ := s.deps.Turns.Pending()
		if path, err := s.deps.Jobs.WriteInputJob(id, text, p.InputAudio, p.ParticipantDurationSec); err == nil {
			resp.JobPath = path
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) reply(c echo.Context) error {
	var req replyRequest
	if err := c.Bind(&req); err != nil || req.TurnID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.deps.Turns.Pending()
	switch {
	case !ok:
		return c.JSON(http.StatusConflict, errorResponse{Error: "no_pending_turn", TurnID: req.TurnID})
	case p.Turn != req.TurnID:
		return c.JSON(http.StatusConflict, errorResponse{Error: "turn_mismatch", TurnID: req.TurnID})
	case p.Status != domain.TurnTranscribed:
		return c.JSON(http.StatusConflict, errorResponse{Error: "out_of_order", TurnID: req.TurnID})
	}

	ctx := c.Request().Context()
	reply, out := s.deps.Turns.Reply(ctx, req.TurnID, p.ParticipantText)
	resp := replyResponse{OK: true, TurnID: req.TurnID, Reply: reply}
	if out != "" {
		resp.OutputPath = &out
		if s.deps.Renderer != nil {
			if err := s.deps.Renderer.Render(ctx, reply, out); err != nil {
				s.log.Warn("turn %d: render failed: %v", req.TurnID, err)
				resp.OutputPath = nil
			} else if s.deps.Prober != nil {
				if d, err := s.deps.Prober.Duration(out); err == nil {
					resp.AIDurationSec = &d
				}
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) finalize(c echo.Context) error {
	var req finalizeRequest
	if err := c.Bind(&req); err != nil || req.TurnID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.deps.Turns.Finalize(c.Request().Context(), req.TurnID, req.AIDurationSec)
	if _, pending := s.deps.Turns.Pending(); !pending {
		s.inFlight.Store(false)
	}

	switch {
	case err == nil:
		return c.JSON(http.StatusOK, startResponse{OK: true})
	case errors.Is(err, domain.ErrNoPendingTurn):
		return c.JSON(http.StatusConflict, errorResponse{Error: "no_pending_turn", TurnID: req.TurnID})
	case errors.Is(err, domain.ErrTurnMismatch):
		return c.JSON(http.StatusConflict, errorResponse{Error: "turn_mismatch", TurnID: req.TurnID})
	case errors.Is(err, domain.ErrTurnOutOfOrder):
		return c.JSON(http.StatusConflict, errorResponse{Error: "out_of_order", TurnID: req.TurnID})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "log_failed", TurnID: req.TurnID})
	}
}

func (s *Server) abandon(c echo.Context) error {
	var req replyRequest
	if err := c.Bind(&req); err != nil || req.TurnID <= 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.deps.Turns.Abandon(req.TurnID)
	if _, pending := s.deps.Turns.Pending(); !pending {
		s.inFlight.Store(false)
	}

	switch {
	case err == nil:
		return c.JSON(http.StatusOK, startResponse{OK: true})
	case errors.Is(err, domain.ErrNoPendingTurn):
		return c.JSON(http.StatusConflict, errorResponse{Error: "no_pending_turn", TurnID: req.TurnID})
	default:
		return c.JSON(http.StatusConflict, errorResponse{Error: "turn_mismatch", TurnID: req.TurnID})
	}
}

// holdGate reports whether the in-flight turn still blocks /start and its
// id. The gate is released when the coordinator no longer holds a pending
// turn or the turn is older than StaleAfter. Callers hold s.mu.
func (s *Server) holdGate() (int, bool) {
	p, ok := s.deps.Turns.Pending()
	if !ok {
		s.inFlight.Store(false)
		return 0, false
	}
	age := s.deps.Now().Sub(s.since)
	if s.deps.StaleAfter <= 0 || age < s.deps.StaleAfter {
		return p.Turn, true
	}
	if err := s.deps.Turns.Abandon(p.Turn); err != nil {
		s.log.Error("turn %d: %v", p.Turn, err)
		return p.Turn, true
	}
	s.log.Warn("turn %d open for %s without /finalize; released", p.Turn, age.Round(time.Second))
	s.inFlight.Store(false)
	return 0, false
}
