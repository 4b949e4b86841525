package http

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

const claimTimeout = 10 * time.Second

// WSHandler upgrades connections on the room channel and bridges them to the
// hub. The first inbound frame must be the identity claim; chat traffic is
// accepted only after the claim is admitted.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new websocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: logger}
}

// Serve handles GET /messages/:room.
func (h *WSHandler) Serve(c *gin.Context) {
	roomID := c.Param("room")
	ctx := c.Request.Context()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client, err := h.admit(ctx, conn, roomID)
	if err != nil {
		h.log.Debug().Err(err).Str("room_id", roomID).Msg("claim not admitted")
		conn.Close(websocket.StatusNormalClosure, "claim rejected")
		return
	}
	defer h.hub.Leave(roomID, client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, roomID, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		default:
			h.log.Debug().Err(err).Str("user", client.Username).Msg("ws connection ended")
		}
	}
	conn.Close(status, reason)
}

// admit waits for the identity claim and registers the client with the hub.
// On rejection the reason is sent as an error frame; closing the connection
// is then the client's responsibility, though we close shortly after too.
func (h *WSHandler) admit(ctx context.Context, conn *websocket.Conn, roomID string) (*core.Client, error) {
	claimCtx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()

	_, data, err := conn.Read(claimCtx)
	if err != nil {
		return nil, err
	}

	var claim proto.Claim
	if err := json.Unmarshal(data, &claim); err != nil {
		h.writeError(ctx, conn, "invalid claim frame")
		return nil, err
	}
	if strings.TrimSpace(claim.Username) == "" {
		h.writeError(ctx, conn, "username is required")
		return nil, errors.New("blank username in claim")
	}

	client, err := h.hub.Join(roomID, claim.Username)
	if errors.Is(err, core.ErrNameTaken) {
		h.writeError(ctx, conn, proto.ReasonNameTaken)
		return nil, err
	}
	if err != nil {
		h.writeError(ctx, conn, "join failed")
		return nil, err
	}
	return client, nil
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, reason string) {
	frame, err := json.Marshal(proto.Envelope{Error: reason})
	if err != nil {
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		h.log.Debug().Err(err).Msg("write error frame")
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, client *core.Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var msg proto.ChatSend
		if err := json.Unmarshal(data, &msg); err != nil {
			// Unknown frame shapes are skipped, mirroring the client's
			// decoder tolerance.
			h.log.Debug().Str("user", client.Username).Msg("ignoring malformed inbound frame")
			continue
		}
		if msg.Type != "" && msg.Type != proto.TypeChat {
			continue
		}
		if strings.TrimSpace(msg.Message) == "" {
			continue
		}

		h.hub.SendChat(roomID, client, msg.Message)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case frame := <-client.Frames:
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
