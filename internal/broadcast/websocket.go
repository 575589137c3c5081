package broadcast

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// NewWebsocketSubscriber adapts an upgraded websocket connection to the
// Subscriber interface. The caller owns the read side of the connection.
func NewWebsocketSubscriber(conn *websocket.Conn, role Role) *WebsocketSubscriber {
	return &WebsocketSubscriber{
		id:   uuid.NewString(),
		role: role,
		conn: conn,
	}
}

type WebsocketSubscriber struct {
	id   string
	role Role
	conn *websocket.Conn
}

func (s *WebsocketSubscriber) ID() string {
	return s.id
}

func (s *WebsocketSubscriber) Role() Role {
	return s.role
}

func (s *WebsocketSubscriber) Send(ev Event) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(ev)
}

func (s *WebsocketSubscriber) Close() error {
	return s.conn.Close()
}
