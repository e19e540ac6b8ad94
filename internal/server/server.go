// Package server exposes the voice controller over HTTP: a WebSocket
// endpoint carrying transcript events and resulting actions, plus health
// and Prometheus metrics endpoints.
//
// Each WebSocket connection is one independent game-view session with its
// own [voice.Controller]; no state is shared between connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/speakmate/speakmate/internal/history"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/voice"
	"github.com/speakmate/speakmate/pkg/types"
)

// Config holds the server's dependencies. Controller is the template for
// per-connection controllers; its Mover field is overwritten per connection.
type Config struct {
	Controller voice.ControllerConfig

	// History is the optional utterance log; nil disables logging.
	History history.Store

	// Checkers back the /readyz endpoint.
	Checkers []Checker
}

// Server serves the WebSocket transcript endpoint and the operational
// endpoints. Safe for concurrent use.
type Server struct {
	cfg      Config
	checkers []Checker
	mux      *http.ServeMux
	nextID   atomic.Int64
}

// New creates a [Server].
func New(cfg Config) *Server {
	s := &Server{cfg: cfg, checkers: cfg.Checkers}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/session", s.handleSession)
	s.mux = mux
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// inbound is a client → server message.
type inbound struct {
	Type string `json:"type"`

	// Transcript fields.
	Kind string `json:"kind,omitempty"`
	Text string `json:"text,omitempty"`

	// Position fields.
	FEN   string   `json:"fen,omitempty"`
	Legal []string `json:"legal,omitempty"`
}

// outbound is a server → client message.
type outbound struct {
	Type string `json:"type"`

	// Action fields.
	Action   string         `json:"action,omitempty"`
	Command  string         `json:"command,omitempty"`
	Request  string         `json:"request,omitempty"`
	Accepted bool           `json:"accepted,omitempty"`
	Move     string         `json:"move,omitempty"`
	Square   string         `json:"square,omitempty"`
	Selected bool           `json:"selected,omitempty"`
	Choices  []wireChoice   `json:"choices,omitempty"`
	Hints    []wireHint     `json:"hints,omitempty"`

	Error string `json:"error,omitempty"`
}

type wireChoice struct {
	Label string `json:"label"`
	Move  string `json:"move"`
}

type wireHint struct {
	Square string `json:"square"`
	Label  string `json:"label"`
}

// wsMover pushes selections and submitted moves to the client. Timer-expiry
// submissions happen outside any Resolve call, so the mover is the only
// channel that always reaches the client.
type wsMover struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (m *wsMover) SelectSquare(sq types.Square, selected bool) {
	_ = wsjson.Write(m.ctx, m.conn, outbound{
		Type:     "select",
		Square:   string(sq),
		Selected: selected,
	})
}

func (m *wsMover) SubmitMove(mv types.Move) {
	_ = wsjson.Write(m.ctx, m.conn, outbound{
		Type: "move",
		Move: mv.UCI(),
	})
}

// handleSession upgrades to WebSocket and runs one game-view session until
// the client disconnects.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}

	ctx := r.Context()
	sessionID := fmt.Sprintf("session-%d", s.nextID.Add(1))

	cfg := s.cfg.Controller
	cfg.Mover = &wsMover{ctx: ctx, conn: conn}
	ctrl, err := voice.New(cfg)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "controller init failed")
		return
	}

	observe.Logger(ctx).Info("session started", "session_id", sessionID)
	defer observe.Logger(ctx).Info("session closed", "session_id", sessionID)

	for {
		var msg inbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && ctx.Err() == nil {
				observe.Logger(ctx).Warn("websocket read failed", "session_id", sessionID, "err", err)
			}
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}

		var reply outbound
		switch msg.Type {
		case "position":
			pos, err := types.PositionFromFEN(msg.FEN, msg.Legal)
			if err != nil {
				reply = outbound{Type: "error", Error: err.Error()}
				break
			}
			ctrl.SetPosition(pos)
			reply = outbound{Type: "position"}

		case "transcript":
			kind := types.TranscriptFull
			if msg.Kind == "partial" || msg.Kind == "stop" {
				kind = types.TranscriptPartial
			}
			act := ctrl.Resolve(ctx, types.Transcript{Kind: kind, Text: msg.Text})
			reply = actionMessage(act, ctrl.Hints())
			s.logUtterance(ctx, sessionID, msg.Text, act)

		default:
			reply = outbound{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)}
		}

		if err := wsjson.Write(ctx, conn, reply); err != nil {
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		}
	}
}

// actionMessage flattens an action (and current hints) onto the wire shape.
func actionMessage(act types.Action, hints []types.Hint) outbound {
	out := outbound{Type: "action"}
	switch act.Kind {
	case types.ActionNone:
		out.Action = "none"
	case types.ActionCommand:
		out.Action = "command"
		out.Command = act.Command.String()
	case types.ActionConfirmation:
		out.Action = "confirmation"
		out.Request = act.Request
		out.Accepted = act.Accepted
	case types.ActionMove:
		out.Action = "move"
		out.Move = act.Move.UCI()
	case types.ActionSelect:
		out.Action = "select"
		out.Square = string(act.Square)
		out.Selected = act.Selected
	case types.ActionChoices:
		out.Action = "choices"
		for _, ch := range act.Choices {
			out.Choices = append(out.Choices, wireChoice{Label: ch.Label, Move: ch.Move.UCI()})
		}
		for _, h := range hints {
			out.Hints = append(out.Hints, wireHint{Square: string(h.Square), Label: h.Label})
		}
	}
	return out
}

// logUtterance appends the resolved utterance to the history store, when one
// is configured. Logging failures are reported but never affect resolution.
func (s *Server) logUtterance(ctx context.Context, sessionID, heard string, act types.Action) {
	if s.cfg.History == nil {
		return
	}
	rec := history.Record{
		SessionID: sessionID,
		Heard:     heard,
		Action:    actionWireName(act.Kind),
	}
	if act.Kind == types.ActionMove {
		rec.Move = act.Move.UCI()
		rec.Cost = act.Cost
	}
	if err := s.cfg.History.Log(ctx, rec); err != nil {
		observe.Logger(ctx).Warn("history log failed", "session_id", sessionID, "err", err)
	}
}

func actionWireName(k types.ActionKind) string {
	switch k {
	case types.ActionCommand:
		return "command"
	case types.ActionConfirmation:
		return "confirmation"
	case types.ActionMove:
		return "move"
	case types.ActionSelect:
		return "select"
	case types.ActionChoices:
		return "choices"
	default:
		return "none"
	}
}
