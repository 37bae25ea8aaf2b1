// Package ws serves the observer stream: read-only websocket fan-out of
// per-tick diagnostics. Observers cannot inject anything into the run.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stratadyn.ai/internal/protocol"
)

type Server struct {
	welcome protocol.WelcomeMsg
	log     *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewServer(welcome protocol.WelcomeMsg, logger *log.Logger) *Server {
	return &Server{
		welcome: welcome,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[chan []byte]struct{}{},
	}
}

// Broadcast fans a tick message out to every attached observer. Slow
// observers are dropped rather than stalling the simulation loop.
func (s *Server) Broadcast(msg protocol.TickMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("marshal tick: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for out := range s.subs {
		select {
		case out <- b:
		default:
			close(out)
			delete(s.subs, out)
			s.log.Printf("dropped slow observer")
		}
	}
}

// Close detaches every observer.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for out := range s.subs {
		close(out)
		delete(s.subs, out)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out, ok := s.handshake(conn)
		if !ok {
			return
		}
		defer s.unsubscribe(out)

		done := make(chan struct{})

		// Writer loop.
		go func() {
			defer close(done)
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Reader loop: observers send nothing after HELLO; we read only to
		// notice the close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		<-done
	}
}

func (s *Server) handshake(conn *websocket.Conn) (chan []byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
			time.Now().Add(time.Second))
		return nil, false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"),
			time.Now().Add(time.Second))
		return nil, false
	}

	// Register before the WELCOME goes out so a broadcast fired right after
	// the observer reads it cannot be missed.
	out := make(chan []byte, 64)
	s.mu.Lock()
	s.subs[out] = struct{}{}
	s.mu.Unlock()

	if err := writeJSON(conn, s.welcome); err != nil {
		s.unsubscribe(out)
		return nil, false
	}
	return out, true
}

func (s *Server) unsubscribe(out chan []byte) {
	s.mu.Lock()
	if _, ok := s.subs[out]; ok {
		close(out)
		delete(s.subs, out)
	}
	s.mu.Unlock()
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
