package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kwak/pkg/protocol"
	"kwak/pkg/registry"
	"kwak/pkg/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the request and runs the connection until it
// closes. Every connection starts unauthenticated; the client must send
// an authenticate event before it can chat.
func (s *Server) handleWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.ErrorWithErr("websocket upgrade failed", err)
		return
	}

	conn := registry.NewConn(uuid.NewString(), ws, s.config.Chat.SendBufferSize)
	s.reg.Add(conn)
	sess := session.New(conn, s.reg, s.tokens, s.bc, s.relay)

	s.log.DebugWith("websocket connected", "conn_id", conn.ID(), "remote", c.ClientIP())

	go s.writePump(conn)
	go s.readPump(conn, sess)
}

// readPump reads client events and feeds them to the session. It owns the
// close path: when the read loop exits the session is torn down and the
// connection removed from the registry.
func (s *Server) readPump(conn *registry.Conn, sess *session.Session) {
	ws := conn.WS()
	defer func() {
		sess.HandleClose()
		conn.Close()
	}()

	ws.SetReadLimit(int64(s.config.Chat.MaxMessageBytes))
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.DebugWith("websocket read error", "conn_id", conn.ID(), "error", err.Error())
			}
			return
		}
		conn.Touch()

		var event protocol.Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.log.DebugWith("malformed event ignored", "conn_id", conn.ID())
			continue
		}
		sess.HandleEvent(&event)
	}
}

// writePump drains the connection's outbound queue onto the wire and keeps
// the connection alive with pings. Exactly one writePump runs per
// connection so websocket writes are never concurrent.
func (s *Server) writePump(conn *registry.Conn) {
	ws := conn.WS()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Events():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
