package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lanhub/lanhub/internal/chat"
	"github.com/lanhub/lanhub/internal/logging"
	"github.com/lanhub/lanhub/internal/presence"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// LAN-local service, browsers connect straight by IP.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
)

// clientFrame is what the browser sends up the socket.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// handleWS upgrades the connection, replays the chat backlog, registers the
// session and pumps events until disconnect.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		if c, err := r.Cookie(nameCookie); err == nil {
			if v, err := url.QueryUnescape(c.Value); err == nil {
				name = v
			}
		}
	}
	if err := presence.ValidateName(name); err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		logging.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if err := s.registry.Join(name, conn); err != nil {
		conn.Close()
		return
	}

	// Announce before subscribing: the new session does not see its own
	// join, everyone already connected does.
	s.chat.Announce(chat.EventUserJoined, map[string]string{"name": name})
	sub := s.chat.Subscribe()
	// direct carries session-only frames (user_list responses) so that the
	// write pump is the sole writer on the connection.
	direct := make(chan chat.Event, 8)

	// Replay the backlog before any pump starts writing, so chat_history is
	// always the first frame a session sees. The subscription is already
	// live: anything posted from here on reaches the session through sub,
	// buffered until the write pump starts.
	history := chat.Event{Type: chat.EventChatHistory, Payload: s.chat.HistorySnapshot()}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(history); err != nil {
		s.registry.Leave(conn)
		s.chat.Unsubscribe(sub)
		conn.Close()
		return
	}

	logging.Info("session joined",
		zap.String("name", name),
		zap.String("remote", r.RemoteAddr),
		zap.Int("active", s.registry.ActiveCount()))

	done := make(chan struct{})
	go s.writePump(conn, sub, direct, done)

	s.readPump(conn, name, direct)

	// Disconnect: tear the session down and tell everyone.
	close(done)
	s.registry.Leave(conn)
	s.chat.Unsubscribe(sub)
	s.chat.Announce(chat.EventUserLeft, map[string]string{"name": name})
	conn.Close()
	logging.Info("session left",
		zap.String("name", name),
		zap.Int("active", s.registry.ActiveCount()))
}

// readPump parses client frames until the connection drops. Chat posts run
// here, on the session's own goroutine, which preserves per-author order.
func (s *Server) readPump(conn *websocket.Conn, name string, direct chan<- chat.Event) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case "chat_message":
			if frame.Text == "" {
				continue
			}
			s.chat.Post(name, frame.Text)
		case "get_users":
			ev := chat.Event{Type: chat.EventUserList, Payload: s.registry.Names()}
			select {
			case direct <- ev:
			default:
			}
		}
	}
}

// writePump is the single writer on the connection. It drains the broadcast
// subscription and the session's direct channel, and keeps the connection
// alive with pings. A write failure ends the pump; the read side notices on
// its next read.
func (s *Server) writePump(conn *websocket.Conn, sub <-chan chat.Event, direct <-chan chat.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case ev := <-direct:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
