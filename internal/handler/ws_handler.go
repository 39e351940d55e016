package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/middleware"
	"github.com/stemsi/provpass/internal/response"
	"github.com/stemsi/provpass/internal/service"
	ws "github.com/stemsi/provpass/internal/websocket"
	"github.com/stemsi/provpass/internal/worker"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one exam screen over a WebSocket.
type WSHandler struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Pushes timer events and takes answers and navigation. Closing the socket
// means the user left the exam screen: the session is closed and its timer stops.
func (h *WSHandler) SessionStream(c *gin.Context) {
	as := middleware.GetSession(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("session_id", as.ID().String()).Logger()
	wsLog.Info().Msg("Exam screen connected")

	out := ws.NewWriter(conn)
	stop := make(chan struct{})
	defer func() {
		close(stop)
		as.Close()
		wsLog.Info().Msg("Exam screen disconnected")
	}()

	_ = out.WriteTyped(ws.StateResponse{Event: ws.EventState, State: as.State()})

	if events := as.Events(); events != nil {
		go h.pumpTimer(out, as, events, stop)
	}

	ctx := context.WithoutCancel(c.Request.Context())
	for {
		var msg ws.ClientMessage
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.reply(out, as, as.RecordAnswer(ctx, msg.QuestionNumber, msg.Option))
		case ws.ActionAdvance:
			if msg.Delta != 1 && msg.Delta != -1 {
				_ = out.WriteError(string(response.ErrValidation), "delta must be 1 or -1")
				continue
			}
			h.reply(out, as, as.Advance(ctx, msg.Delta))
		case ws.ActionComplete:
			h.reply(out, as, as.Complete(ctx))
		case ws.ActionPing:
			_ = out.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = out.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// reply sends the error, if any, followed by the current state.
func (h *WSHandler) reply(out *ws.Writer, as *service.ActiveSession, err error) {
	if err != nil {
		_, code := serviceError(err)
		_ = out.WriteError(string(code), err.Error())
	}

	event := ws.EventState
	if as.Completed() {
		event = ws.EventCompleted
	}
	_ = out.WriteTyped(ws.StateResponse{Event: event, State: as.State()})
}

// pumpTimer forwards timer events until the timer or the connection ends.
func (h *WSHandler) pumpTimer(out *ws.Writer, as *service.ActiveSession, events <-chan worker.TimerEvent, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var err error
			switch ev.Type {
			case worker.EventTick:
				err = out.WriteTyped(ws.TimerResponse{Event: ws.EventTick, RemainingSeconds: int(ev.Remaining / time.Second)})
			case worker.EventCheckpoint:
				err = out.WriteTyped(ws.TimerResponse{Event: ws.EventCheckpoint, RemainingSeconds: int(ev.Remaining / time.Second)})
			case worker.EventExpired:
				// Completion runs after the event; wait for the timer to finish it.
				for range events {
				}
				err = out.WriteTyped(ws.StateResponse{Event: ws.EventCompleted, State: as.State()})
			}
			if err != nil {
				return
			}
		}
	}
}
