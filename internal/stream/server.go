// Package stream serves published snapshots over HTTP and websockets and
// accepts commands from connected clients.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/sim"
)

const maxRate = 240.0

// Engine is the part of sim.Engine the server uses.
type Engine interface {
	automation.Sender
	ReadState() *dynamo.Snapshot
	PublishedFrame() uint64
}

type Server struct {
	eng     Engine
	log     *log.Logger
	rate    float64
	schemas *Schemas

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	sessions atomic.Int64
}

func NewServer(eng Engine, rate float64, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if rate <= 0 {
		rate = config.DefaultStreamRate
	}
	schemas, err := LoadSchemas()
	if err != nil {
		return nil, err
	}
	return &Server{
		eng:     eng,
		log:     logger,
		rate:    rate,
		schemas: schemas,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

// Sessions is the number of connected websocket subscribers.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/state", s.StateHandler())
	mux.HandleFunc("/v1/ws", s.WSHandler())
	return mux
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx2)
	}()

	s.log.Printf("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) StateHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(frameMsg(s.eng.ReadState(), nil))
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscribeMsg
		if err := validateJSON(s.schemas.Subscribe, msg); err != nil {
			s.log.Printf("rejected subscribe: %v", err)
			closeWith(conn, websocket.ClosePolicyViolation, "expected SUBSCRIBE")
			return
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad subscribe")
			return
		}
		s.normalizeSubscribe(&sub)

		sid := fmt.Sprintf("S%d", s.nextID.Add(1))
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.log.Printf("session %s subscribed at %.0f Hz", sid, sub.Rate)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		frameOut := make(chan []byte, 1)
		ctrlOut := make(chan []byte, 16)
		go s.poll(ctx, sub, frameOut)

		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b = <-frameOut:
				case b = <-ctrlOut:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd CommandMsg
			if err := json.Unmarshal(msg, &cmd); err != nil || cmd.Type != TypeCommand {
				continue
			}
			err = validateJSON(s.schemas.Command, msg)
			if err != nil {
				err = fmt.Errorf("command %q: %w", cmd.Kind, err)
			} else {
				err = s.apply(cmd)
			}
			if err != nil {
				b, _ := json.Marshal(ErrorMsg{Type: TypeError, Ref: cmd.Ref, Message: err.Error()})
				select {
				case ctrlOut <- b:
				default:
				}
			}
		}

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		s.log.Printf("session %s closed", sid)

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// poll samples the engine at the session rate and queues each new frame,
// replacing one the writer has not picked up yet.
func (s *Server) poll(ctx context.Context, sub SubscribeMsg, out chan []byte) {
	var only map[dynamo.BodyID]bool
	if len(sub.Bodies) > 0 {
		only = make(map[dynamo.BodyID]bool, len(sub.Bodies))
		for _, id := range sub.Bodies {
			only[id] = true
		}
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / sub.Rate))
	defer ticker.Stop()

	sent, first := uint64(0), true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if f := s.eng.PublishedFrame(); !first && f == sent {
			continue
		}
		snap := s.eng.ReadState()
		b, err := json.Marshal(frameMsg(snap, only))
		if err != nil {
			s.log.Printf("encode frame %d: %v", snap.Frame, err)
			continue
		}
		sendLatest(out, b)
		sent, first = snap.Frame, false
	}
}

func (s *Server) apply(cmd CommandMsg) error {
	v := dynamo.V(cmd.Value[0], cmd.Value[1])
	if !dynamo.IsFinite(v) {
		return dynamo.ErrNonFinite
	}
	switch cmd.Kind {
	case "impulse":
		s.eng.Send(sim.ApplyImpulse{ID: cmd.Body, Impulse: v})
	case "force":
		s.eng.Send(sim.ApplyForce{ID: cmd.Body, Force: v})
	case "velocity":
		s.eng.Send(sim.SetVelocity{ID: cmd.Body, Velocity: v})
	case "position":
		s.eng.Send(sim.SetPosition{ID: cmd.Body, Position: v})
	case "remove":
		s.eng.Send(sim.RemoveRigidBody{ID: cmd.Body})
	case "spawn":
		return automation.Spawn(s.eng, config.BodyConfig{
			ID:       uint64(cmd.Body),
			Type:     dynamo.Dynamic,
			Position: config.Vec2(cmd.Value),
			Shape:    cmd.Shape,
		})
	default:
		return fmt.Errorf("unknown command %q", cmd.Kind)
	}
	return nil
}

func (s *Server) normalizeSubscribe(sub *SubscribeMsg) {
	if sub.Rate <= 0 {
		sub.Rate = s.rate
	}
	if sub.Rate > maxRate {
		sub.Rate = maxRate
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
