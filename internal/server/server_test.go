package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/speakmate/speakmate/internal/history"
	"github.com/speakmate/speakmate/internal/lexicon"
	"github.com/speakmate/speakmate/internal/voice"
	"github.com/speakmate/speakmate/pkg/types"
)

func englishLexicon(t *testing.T) *lexicon.Store {
	t.Helper()
	s := lexicon.New()
	if err := s.Load("../../grammars/en.yaml"); err != nil {
		t.Fatalf("load grammar: %v", err)
	}
	return s
}

func TestActionMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		act  types.Action
		want outbound
	}{
		{
			name: "none",
			act:  types.Action{},
			want: outbound{Type: "action", Action: "none"},
		},
		{
			name: "command",
			act:  types.Action{Kind: types.ActionCommand, Command: types.CmdFlip},
			want: outbound{Type: "action", Action: "command", Command: "flip"},
		},
		{
			name: "confirmation",
			act:  types.Action{Kind: types.ActionConfirmation, Request: "takeback", Accepted: true},
			want: outbound{Type: "action", Action: "confirmation", Request: "takeback", Accepted: true},
		},
		{
			name: "move",
			act:  types.Action{Kind: types.ActionMove, Move: types.Move{From: "e2", To: "e4"}},
			want: outbound{Type: "action", Action: "move", Move: "e2e4"},
		},
		{
			name: "select",
			act:  types.Action{Kind: types.ActionSelect, Square: "g1", Selected: true},
			want: outbound{Type: "action", Action: "select", Square: "g1", Selected: true},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := actionMessage(tt.act, nil)
			if got.Type != tt.want.Type || got.Action != tt.want.Action ||
				got.Command != tt.want.Command || got.Request != tt.want.Request ||
				got.Accepted != tt.want.Accepted || got.Move != tt.want.Move ||
				got.Square != tt.want.Square || got.Selected != tt.want.Selected {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestActionMessage_Choices(t *testing.T) {
	t.Parallel()

	act := types.Action{Kind: types.ActionChoices, Choices: []types.Choice{
		{Label: "green", Move: types.Move{From: "b2", To: "b4"}},
		{Label: "blue", Move: types.Move{From: "d2", To: "d4"}},
	}}
	hints := []types.Hint{{Square: "b4", Label: "green"}, {Square: "d4", Label: "blue"}}

	got := actionMessage(act, hints)
	if got.Action != "choices" || len(got.Choices) != 2 || len(got.Hints) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Choices[0].Label != "green" || got.Choices[0].Move != "b2b4" {
		t.Errorf("choice 1: got %+v", got.Choices[0])
	}
	if got.Hints[1].Square != "d4" {
		t.Errorf("hint 2: got %+v", got.Hints[1])
	}
}

func TestHandleHealthz(t *testing.T) {
	t.Parallel()

	s := New(Config{Controller: voice.ControllerConfig{Lexicon: englishLexicon(t)}})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var res healthResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("got %+v", res)
	}
}

func TestHandleReadyz(t *testing.T) {
	t.Parallel()

	s := New(Config{
		Controller: voice.ControllerConfig{Lexicon: englishLexicon(t)},
		Checkers: []Checker{
			{Name: "good", Check: func(context.Context) error { return nil }},
			{Name: "bad", Check: func(context.Context) error { return errors.New("down") }},
		},
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d", rec.Code)
	}
	var res healthResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "fail" || res.Checks["good"] != "ok" {
		t.Errorf("got %+v", res)
	}
}

// fakeHistory records logged utterances.
type fakeHistory struct {
	records []history.Record
}

func (f *fakeHistory) Log(_ context.Context, r history.Record) error {
	f.records = append(f.records, r)
	return nil
}

func (f *fakeHistory) Recent(context.Context, string, int) ([]history.Record, error) {
	return f.records, nil
}

func TestLogUtterance(t *testing.T) {
	t.Parallel()

	hist := &fakeHistory{}
	s := New(Config{
		Controller: voice.ControllerConfig{Lexicon: englishLexicon(t)},
		History:    hist,
	})

	act := types.Action{Kind: types.ActionMove, Move: types.Move{From: "b2", To: "b4"}, Cost: 0.45}
	s.logUtterance(context.Background(), "session-1", "b two b four", act)

	if len(hist.records) != 1 {
		t.Fatalf("got %d records, want 1", len(hist.records))
	}
	rec := hist.records[0]
	if rec.SessionID != "session-1" || rec.Heard != "b two b four" {
		t.Errorf("got %+v", rec)
	}
	if rec.Action != "move" || rec.Move != "b2b4" || rec.Cost != 0.45 {
		t.Errorf("got %+v", rec)
	}
}

func TestSession_RoundTrip(t *testing.T) {
	t.Parallel()

	s := New(Config{Controller: voice.ControllerConfig{Lexicon: englishLexicon(t)}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.URL+"/session", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Install a position.
	err = wsjson.Write(ctx, conn, inbound{
		Type:  "position",
		FEN:   "4k3/8/8/8/8/8/1P1P4/4K3 w",
		Legal: []string{"b2b3", "b2b4", "d2d3", "d2d4"},
	})
	if err != nil {
		t.Fatalf("write position: %v", err)
	}
	var reply outbound
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "position" {
		t.Fatalf("got %+v", reply)
	}

	// A decisive transcript: the mover pushes the move, then the action
	// reply arrives.
	err = wsjson.Write(ctx, conn, inbound{Type: "transcript", Text: "b two b four"})
	if err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	var sawMove bool
	for {
		if err := wsjson.Read(ctx, conn, &reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		if reply.Type == "move" {
			if reply.Move != "b2b4" {
				t.Errorf("mover pushed %q", reply.Move)
			}
			sawMove = true
			continue
		}
		break
	}
	if !sawMove {
		t.Error("expected a mover push before the action reply")
	}
	if reply.Type != "action" || reply.Action != "move" || reply.Move != "b2b4" {
		t.Errorf("got %+v", reply)
	}
}

func TestSession_BadPosition(t *testing.T) {
	t.Parallel()

	s := New(Config{Controller: voice.ControllerConfig{Lexicon: englishLexicon(t)}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, ts.URL+"/session", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := wsjson.Write(ctx, conn, inbound{Type: "position", FEN: "nonsense"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply outbound
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "error" || reply.Error == "" {
		t.Errorf("got %+v", reply)
	}

	// The session survives a bad message.
	if err := wsjson.Write(ctx, conn, inbound{Type: "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != "error" {
		t.Errorf("got %+v", reply)
	}
}
