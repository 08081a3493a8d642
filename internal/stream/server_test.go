package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

func startEngine(t *testing.T) *sim.Engine {
	t.Helper()
	eng, err := sim.New(sim.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(eng.Shutdown)
	return eng
}

// stepUntil keeps stepping the engine until cond holds or time runs out.
func stepUntil(t *testing.T, eng *sim.Engine, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		eng.Step(1.0 / 60)
		time.Sleep(2 * time.Millisecond)
	}
}

func newServer(t *testing.T, eng Engine, rate float64) *Server {
	t.Helper()
	s, err := NewServer(eng, rate, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStateHandler(t *testing.T) {
	eng := startEngine(t)
	eng.CreateRigidBody(3, dynamo.Static, dynamo.V(1, 2))
	stepUntil(t, eng, func() bool { return eng.PublishedFrame() >= 1 })

	srv := httptest.NewServer(newServer(t, eng, 0).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	schemas, err := LoadSchemas()
	if err != nil {
		t.Fatal(err)
	}
	if err := validateJSON(schemas.Frame, body); err != nil {
		t.Errorf("state does not match the frame schema: %v", err)
	}
	var msg FrameMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeFrame || len(msg.Bodies) != 1 {
		t.Fatalf("unexpected frame %+v", msg)
	}
	if msg.Bodies[0].ID != 3 || msg.Bodies[0].Position != [2]float64{1, 2} {
		t.Errorf("unexpected body %+v", msg.Bodies[0])
	}

	post, err := http.Post(srv.URL+"/v1/state", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", post.StatusCode)
	}
}

func TestWSSubscribeAndCommand(t *testing.T) {
	eng := startEngine(t)
	s := newServer(t, eng, 120)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version, Bodies: []dynamo.BodyID{9}}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(CommandMsg{
		Type:  TypeCommand,
		Kind:  "spawn",
		Body:  9,
		Value: [2]float64{0, 5},
		Shape: &config.ShapeConfig{Kind: "ball", Radius: 0.5},
	}); err != nil {
		t.Fatal(err)
	}

	stepUntil(t, eng, func() bool {
		_, ok := eng.GetPosition(9)
		return ok
	})
	if s.Sessions() != 1 {
		t.Errorf("expected 1 session, got %d", s.Sessions())
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		eng.Step(1.0 / 60)
		var msg FrameMsg
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != TypeFrame {
			t.Fatalf("unexpected message %+v", msg)
		}
		if len(msg.Bodies) == 1 && msg.Bodies[0].ID == 9 {
			if msg.Bodies[0].Position[1] > 5 {
				t.Errorf("spawned body rose to %v", msg.Bodies[0].Position)
			}
			break
		}
	}
}

func TestWSReportsBadCommands(t *testing.T) {
	eng := startEngine(t)
	srv := httptest.NewServer(newServer(t, eng, 1).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(SubscribeMsg{Type: TypeSubscribe, ProtocolVersion: Version}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(CommandMsg{Type: TypeCommand, Kind: "teleport", Ref: "r1"}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg ErrorMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type == TypeError {
			if msg.Ref != "r1" || !strings.Contains(msg.Message, "teleport") {
				t.Errorf("unexpected error message %+v", msg)
			}
			return
		}
	}
}

func TestWSRequiresSubscribe(t *testing.T) {
	eng := startEngine(t)
	srv := httptest.NewServer(newServer(t, eng, 0).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(SubscribeMsg{Type: "HELLO", ProtocolVersion: Version}); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("expected policy violation close, got %v", err)
	}
}

func TestSendLatest(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Errorf("expected latest frame b, got %s", got)
	}
}

func TestCommandSchema(t *testing.T) {
	schemas, err := LoadSchemas()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"impulse", `{"type":"COMMAND","kind":"impulse","body":1,"value":[0,4]}`, true},
		{"remove without value", `{"type":"COMMAND","kind":"remove","body":2,"ref":"x"}`, true},
		{"spawn", `{"type":"COMMAND","kind":"spawn","body":3,"value":[0,5],"shape":{"kind":"ball","radius":0.5}}`, true},
		{"spawn without shape", `{"type":"COMMAND","kind":"spawn","body":3,"value":[0,5]}`, false},
		{"unknown kind", `{"type":"COMMAND","kind":"teleport","body":1}`, false},
		{"negative body", `{"type":"COMMAND","kind":"force","body":-1,"value":[1,0]}`, false},
		{"short value", `{"type":"COMMAND","kind":"force","body":1,"value":[1]}`, false},
		{"missing body", `{"type":"COMMAND","kind":"force"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJSON(schemas.Command, []byte(tt.raw))
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestSubscribeSchema(t *testing.T) {
	schemas, err := LoadSchemas()
	if err != nil {
		t.Fatal(err)
	}
	if err := validateJSON(schemas.Subscribe, []byte(`{"type":"SUBSCRIBE","protocol_version":1,"rate":30,"bodies":[1,2]}`)); err != nil {
		t.Errorf("valid subscribe rejected: %v", err)
	}
	if err := validateJSON(schemas.Subscribe, []byte(`{"type":"SUBSCRIBE","protocol_version":2}`)); err == nil {
		t.Error("wrong protocol version accepted")
	}
}
