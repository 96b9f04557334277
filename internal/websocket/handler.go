package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HanphoneJan/Ai-Interview-Agent/internal/config"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/dialogue"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/media"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/pipeline"
	"github.com/HanphoneJan/Ai-Interview-Agent/internal/session"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/interfaces"
	"github.com/HanphoneJan/Ai-Interview-Agent/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is deployment-specific; tighten behind a proxy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler accepts interview connections and drives the ingest side of the
// pipeline: chunk reassembly, container validation and unit submission.
type Handler struct {
	registry    *Registry
	sessions    *session.Manager
	reassembler *media.Reassembler
	validator   *media.Validator
	pipeline    *pipeline.Manager
	controller  *dialogue.Controller
	expression  interfaces.ExpressionAnalyzer
	limiter     *IngestLimiter

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	bufferSize   int
	callTimeout  time.Duration
}

// NewHandler creates a websocket handler with its collaborators injected.
// A nil wsCfg or non-positive fields fall back to the defaults.
func NewHandler(registry *Registry, sessions *session.Manager, reassembler *media.Reassembler,
	validator *media.Validator, pl *pipeline.Manager, controller *dialogue.Controller,
	expression interfaces.ExpressionAnalyzer, limiter *IngestLimiter,
	wsCfg *config.WebSocketConfig, callTimeout time.Duration) *Handler {
	h := &Handler{
		registry:    registry,
		sessions:    sessions,
		reassembler: reassembler,
		validator:   validator,
		pipeline:    pl,
		controller:  controller,
		expression:  expression,
		limiter:     limiter,
		callTimeout: callTimeout,
	}
	if wsCfg != nil {
		h.pingInterval = wsCfg.PingInterval
		h.readTimeout = wsCfg.ReadTimeout
		h.writeTimeout = wsCfg.WriteTimeout
		h.bufferSize = wsCfg.BufferSize
	}
	if h.pingInterval <= 0 {
		h.pingInterval = 30 * time.Second
	}
	if h.readTimeout <= 0 {
		h.readTimeout = 2 * h.pingInterval
	}
	if h.callTimeout <= 0 {
		h.callTimeout = 30 * time.Second
	}
	return h
}

// HandleWebSocket validates the request, opens the session and hands the
// upgraded connection to its read loop. Opening a fresh session triggers
// the first interview question as a detached task.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	clientID := r.URL.Query().Get("client_id")
	role := r.URL.Query().Get("role")

	if sessionID == "" {
		http.Error(w, "Missing required query parameter: session_id", http.StatusBadRequest)
		return
	}
	if !types.IsValidSessionID(sessionID) {
		http.Error(w, "Invalid session_id format", http.StatusBadRequest)
		return
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}
	if role == "" {
		role = "candidate"
	}

	handle, _, err := h.sessions.Open(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, interfaces.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
		} else {
			http.Error(w, "Session open failed", http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		h.sessions.Release(sessionID)
		return
	}

	wsConn := NewConnection(conn, sessionID, clientID, role, h.bufferSize, h.writeTimeout)
	if err := h.registry.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		h.sessions.Release(sessionID)
		return
	}

	// The first connection finds the session awaiting its opening question;
	// Begin is a no-op for every later connection.
	go func() {
		if err := h.controller.Begin(context.Background(), handle); err != nil {
			log.Printf("Opening question for session %s failed: %v", sessionID, err)
			h.registry.Deliver(sessionID, types.NewErrorPayload("error", "could not start the interview"))
		}
	}()

	go h.handleConnection(wsConn, handle)
}

// handleConnection runs the read loop with heartbeat monitoring and tears
// the session's ingest state down when its last connection goes away.
func (h *Handler) handleConnection(conn *Connection, handle *session.Handle) {
	sessionID := conn.SessionID()

	defer func() {
		h.registry.Unregister(conn)
		_ = conn.Close()
		if h.sessions.Release(sessionID) {
			// Last connection for the session: stop its worker and drop
			// any partially assembled buffers. Detached analysis tasks
			// already in flight run to completion.
			h.pipeline.CloseSession(sessionID)
			h.reassembler.Release(sessionID)
			h.limiter.Release(sessionID)
		}
	}()

	readDeadline := h.readTimeout
	if err := conn.conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WritePing(); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error for session %s: %v", sessionID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "parse_error", "message is not valid JSON")
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = sessionID
		}
		if msg.SessionID != sessionID {
			h.sendError(conn, "parse_error", "session_id does not match this connection")
			continue
		}
		if err := msg.Validate(); err != nil {
			h.sendError(conn, "parse_error", err.Error())
			continue
		}

		switch msg.Type {
		case types.MessageTypeMediaChunk:
			h.handleMediaChunk(conn, &msg)
		case types.MessageTypeImage:
			h.handleImage(conn, &msg)
		case types.MessageTypeControl:
			h.handleControl(conn, handle, &msg)
		}
	}
}

// handleMediaChunk ingests one chunk synchronously; a completed unit is
// validated and handed to the pipeline so the read loop never blocks on a
// full analysis round trip.
func (h *Handler) handleMediaChunk(conn *Connection, msg *types.ClientMessage) {
	sessionID := conn.SessionID()

	if !h.limiter.Allow(sessionID) {
		h.sendError(conn, "error", ErrRateLimited.Error())
		return
	}

	unit, err := h.reassembler.Ingest(sessionID, msg.MediaType, msg.Chunk, msg.IsLast)
	if err != nil {
		h.sendError(conn, "error", err.Error())
		return
	}
	if unit == nil {
		return
	}

	if !h.validator.Validate(unit.Payload, unit.MediaType) {
		log.Printf("Rejecting %s unit for session %s: container validation failed", unit.MediaType, sessionID)
		h.sendError(conn, "error", "media payload failed validation")
		return
	}

	if err := h.pipeline.Submit(unit); err != nil {
		h.sendError(conn, "error", err.Error())
	}
}

// handleImage analyzes a single still frame as a detached task and returns
// the features as feedback. Images never touch the dialogue state machine.
func (h *Handler) handleImage(conn *Connection, msg *types.ClientMessage) {
	sessionID := conn.SessionID()

	frame, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		h.sendError(conn, "parse_error", "image data is not valid base64")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.callTimeout)
		defer cancel()

		res := h.expression.AnalyzeFrame(ctx, frame)
		if !res.Success {
			log.Printf("Image analysis for session %s failed: %s", sessionID, res.Err)
			h.registry.Deliver(sessionID, types.NewErrorPayload("error", "image analysis failed"))
			return
		}
		h.registry.Deliver(sessionID, types.FeedbackPayload{
			Type:     "feedback",
			Feedback: map[string]any{"image_analysis": res.Features},
		})
	}()
}

// handleControl executes client control actions.
func (h *Handler) handleControl(conn *Connection, handle *session.Handle, msg *types.ClientMessage) {
	switch msg.Action {
	case "finish":
		ctx, cancel := context.WithTimeout(context.Background(), h.callTimeout)
		defer cancel()
		if err := h.controller.Finish(ctx, handle); err != nil {
			if errors.Is(err, dialogue.ErrInterviewFinished) {
				return
			}
			h.sendError(conn, "error", "could not finish the interview")
		}
	default:
		h.sendError(conn, "parse_error", "unknown control action")
	}
}

func (h *Handler) sendError(conn *Connection, kind, message string) {
	if err := conn.WriteJSON(types.NewErrorPayload(kind, message)); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}
