package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lovelyswap/golovelyd/internal/core/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamMessage is one event pushed over the websocket.
type StreamMessage struct {
	Type  string      `json:"type"`
	Event state.Event `json:"event"`
}

// eventTypeName maps an engine event to a wire type tag,
// e.g. pair.SwapEvent -> "swap", tcrouter.Registered -> "registered".
func eventTypeName(ev state.Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "Event")
	return strings.ToLower(name)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.node.Subscribe()
	defer cancel()

	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Info("websocket client connected")
	defer log.Info("websocket client disconnected")

	// Drain reads so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingInterval := time.Duration(s.config.WebsocketPingSeconds) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(StreamMessage{Type: eventTypeName(ev), Event: ev})
			if err != nil {
				log.Error("failed to encode event", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
