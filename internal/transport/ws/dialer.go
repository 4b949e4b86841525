// Package ws adapts coder/websocket to the session.Transport interface.
package ws

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/coder/websocket"

	"github.com/vovakirdan/roomchat/internal/session"
)

// Dialer opens websocket transports against the chat server. BaseURL is the
// ws scheme root, e.g. "ws://localhost:8000"; the room channel lives at
// /messages/{roomID}.
type Dialer struct {
	BaseURL string
}

// Dial implements session.Dialer.
func (d Dialer) Dial(ctx context.Context, roomID string) (session.Transport, error) {
	url := strings.TrimRight(d.BaseURL, "/") + "/messages/" + roomID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &transport{conn: conn}, nil
}

type transport struct {
	conn *websocket.Conn
}

func (t *transport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (t *transport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *transport) Close(reason string) error {
	return t.conn.Close(websocket.StatusNormalClosure, reason)
}
