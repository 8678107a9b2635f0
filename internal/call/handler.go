package call

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/callcoach/internal/dialogue"
	"github.com/ashureev/callcoach/internal/domain"
	"github.com/ashureev/callcoach/internal/identity"
	"github.com/ashureev/callcoach/internal/scoring"
	"github.com/ashureev/callcoach/internal/shared"
	"github.com/ashureev/callcoach/internal/speech"
	"github.com/ashureev/callcoach/internal/store"
)

// Message types exchanged on the call socket.
const (
	TypeUtterance  = "utterance"
	TypeAudio      = "audio"
	TypeEnd        = "end"
	TypePing       = "ping"
	TypeReady      = "ready"
	TypeTranscript = "transcript"
	TypeProspect   = "prospect"
	TypeScore      = "score"
	TypeError      = "error"
	TypePong       = "pong"
)

const writeTimeout = 10 * time.Second

// clientMessage is a frame sent by the trainee's browser. Audio arrives as
// base64 in JSON and is decoded into bytes.
type clientMessage struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	Audio    []byte              `json:"audio,omitempty"`
	Speak    bool                `json:"speak,omitempty"`
	Outcomes domain.OutcomeFlags `json:"outcomes,omitempty"`
}

type readyMessage struct {
	Type       string         `json:"type"`
	SessionID  string         `json:"session_id"`
	Persona    domain.Persona `json:"persona"`
	Trust      float64        `json:"trust"`
	Resistance float64        `json:"resistance"`
}

type prospectMessage struct {
	Type       string           `json:"type"`
	Text       string           `json:"text"`
	Trust      float64          `json:"trust"`
	Resistance float64          `json:"resistance"`
	Mode       domain.ReplyMode `json:"mode"`
}

type scoreMessage struct {
	Type   string             `json:"type"`
	Report domain.ScoreReport `json:"report"`
}

// Options configures the call handler.
type Options struct {
	AllowedOrigins  []string
	IsDev           bool
	MaxMessageBytes int64
	Retry           shared.RetryPolicy
}

// Handler serves the live call WebSocket.
type Handler struct {
	repo   store.Repository
	engine *dialogue.Engine
	stt    speech.Transcriber
	tts    speech.Synthesizer
	mgr    *Manager
	opts   Options
	logger *slog.Logger
}

// NewHandler creates a call handler.
func NewHandler(repo store.Repository, engine *dialogue.Engine, stt speech.Transcriber, tts speech.Synthesizer, mgr *Manager, opts Options, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:   repo,
		engine: engine,
		stt:    stt,
		tts:    tts,
		mgr:    mgr,
		opts:   opts,
		logger: logger,
	}
}

// call is the server-side state of one connected call.
type call struct {
	session    *domain.Session
	state      domain.ProspectState
	transcript []domain.TranscriptEntry
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	traineeID := identity.TraineeIDFromContext(r.Context())
	sessionID := r.URL.Query().Get("session_id")
	h.logger.Info("Call connection request", "trainee_id", traineeID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil || session.TraineeID != traineeID {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("Failed to load call session", "session_id", sessionID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if session.IsCompleted() {
		http.Error(w, "session already completed", http.StatusConflict)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "call ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()
	if h.opts.MaxMessageBytes > 0 {
		ws.SetReadLimit(h.opts.MaxMessageBytes)
	}

	h.mgr.Register(sessionID, ws)
	defer h.mgr.Unregister(sessionID, ws)

	c := &call{session: session, state: domain.DefaultProspectState}
	if err := h.writeJSON(ws, readyMessage{
		Type:       TypeReady,
		SessionID:  session.ID,
		Persona:    session.Persona,
		Trust:      c.state.Trust,
		Resistance: c.state.Resistance,
	}); err != nil {
		h.logger.Debug("Failed to send ready", "error", err)
		return
	}

	h.readLoop(r.Context(), ws, c)
	h.logger.Info("Call ended", "session_id", sessionID, "turns", len(c.transcript))
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.opts.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(h.opts.AllowedOrigins, origin) {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, c *call) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", c.session.ID)
			} else if ctx.Err() == nil {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", c.session.ID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(ws, "invalid_message")
			continue
		}

		switch msg.Type {
		case TypeUtterance:
			h.handleUtterance(ctx, ws, c, msg.Text, msg.Speak)
		case TypeAudio:
			text, err := h.stt.Transcribe(ctx, msg.Audio)
			if err != nil {
				h.logger.Warn("Call transcription failed", "error", err, "session_id", c.session.ID)
				h.sendError(ws, "transcription_failed")
				continue
			}
			if text == speech.PendingTranscript {
				h.logger.Warn("No transcriber configured, audio dropped", "session_id", c.session.ID)
				h.sendError(ws, "transcription_failed")
				continue
			}
			if err := h.writeJSON(ws, map[string]string{"type": TypeTranscript, "text": text}); err != nil {
				return
			}
			h.handleUtterance(ctx, ws, c, text, msg.Speak)
		case TypeEnd:
			h.finish(ctx, ws, c, msg.Outcomes)
			return
		case TypePing:
			if err := h.writeJSON(ws, map[string]string{"type": TypePong}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
			}
		default:
			h.sendError(ws, "unknown_message_type")
		}
	}
}

func (h *Handler) handleUtterance(ctx context.Context, ws *websocket.Conn, c *call, text string, speak bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		h.sendError(ws, "empty_utterance")
		return
	}

	turn := h.engine.Respond(ctx, c.state, text, c.session.Persona.PrimaryObjection)
	c.state = turn.NextState
	c.transcript = append(c.transcript,
		domain.TranscriptEntry{Speaker: domain.SpeakerTrainee, Text: text},
		domain.TranscriptEntry{Speaker: domain.SpeakerProspect, Text: turn.Text},
	)

	if err := h.writeJSON(ws, prospectMessage{
		Type:       TypeProspect,
		Text:       turn.Text,
		Trust:      turn.NextState.Trust,
		Resistance: turn.NextState.Resistance,
		Mode:       turn.Mode,
	}); err != nil {
		h.logger.Debug("Failed to send prospect reply", "error", err)
		return
	}

	if !speak {
		return
	}
	audio, err := h.tts.Synthesize(ctx, turn.Text)
	if err != nil {
		h.logger.Warn("Call synthesis failed", "error", err, "session_id", c.session.ID)
		h.sendError(ws, "synthesis_failed")
		return
	}
	if len(audio) == 0 {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageBinary, audio); err != nil {
		h.logger.Debug("Failed to send prospect audio", "error", err)
	}
}

func (h *Handler) finish(ctx context.Context, ws *websocket.Conn, c *call, outcomes domain.OutcomeFlags) {
	report := scoring.Score(c.transcript, outcomes)
	completedAt := time.Now().UTC()

	err := shared.RetryOnConflict(ctx, h.opts.Retry, "complete call session", func() error {
		return h.repo.CompleteSession(ctx, c.session.ID, c.transcript, report, completedAt)
	})
	switch {
	case errors.Is(err, store.ErrAlreadyCompleted):
		h.sendError(ws, "session_already_completed")
		return
	case err != nil:
		h.logger.Error("Failed to persist call", "error", err, "session_id", c.session.ID)
		h.sendError(ws, "persist_failed")
		return
	}

	h.logger.Info("Call scored", "session_id", c.session.ID, "total_score", report.TotalScore)
	if err := h.writeJSON(ws, scoreMessage{Type: TypeScore, Report: report}); err != nil {
		h.logger.Debug("Failed to send score", "error", err)
	}
}

func (h *Handler) sendError(ws *websocket.Conn, code string) {
	if err := h.writeJSON(ws, map[string]string{"type": TypeError, "error": code}); err != nil {
		h.logger.Debug("Failed to send error", "error", err, "code", code)
	}
}

func (h *Handler) writeJSON(ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
