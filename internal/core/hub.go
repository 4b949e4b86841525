package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// ErrNameTaken means the claimed username is already present in the room.
var ErrNameTaken = errors.New("username already in use")

// Hub coordinates room membership and broadcasting. Usernames are unique per
// room; a successful join announces the newcomer with a system notice and a
// fresh users snapshot, so the joining client always receives a frame
// promptly after its claim is accepted.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
	log   *zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		log:   logger,
	}
}

// Join claims username in roomID. It fails with ErrNameTaken when the name
// is already in use; on success everyone in the room, the newcomer included,
// receives the join notice and an updated snapshot.
func (h *Hub) Join(roomID, username string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom(roomID)
		h.rooms[roomID] = r
	}

	client := newClient(username)
	if !r.add(client) {
		return nil, ErrNameTaken
	}

	h.log.Info().Str("room_id", roomID).Str("user", username).Msg("user joined room")
	r.broadcast(systemFrame(fmt.Sprintf("%s joined the chat", username)), nil)
	r.broadcast(usersFrame(r.usernames()), nil)
	return client, nil
}

// Leave removes the client and announces the departure. Idempotent: leaving
// twice, or after being superseded, is a no-op.
func (h *Hub) Leave(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok || !r.remove(c) {
		return
	}

	h.log.Info().Str("room_id", roomID).Str("user", c.Username).Msg("user left room")
	if r.empty() {
		delete(h.rooms, roomID)
		return
	}
	r.broadcast(systemFrame(fmt.Sprintf("%s left the chat", c.Username)), nil)
	r.broadcast(usersFrame(r.usernames()), nil)
}

// SendChat broadcasts a chat message from c to everyone else in the room.
// The sender is skipped: the protocol never echoes a message back to its
// author.
func (h *Hub) SendChat(roomID string, c *Client, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	r.broadcast(chatFrame(c.Username, text), c)
}

func chatFrame(username, text string) []byte {
	return mustMarshal(proto.Envelope{Type: proto.TypeChat, Username: username, Message: text})
}

func systemFrame(text string) []byte {
	return mustMarshal(proto.Envelope{Type: proto.TypeSystem, Message: text})
}

func usersFrame(users []string) []byte {
	return mustMarshal(proto.Envelope{Type: proto.TypeUsers, Users: users})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Envelope contains only strings and slices; this cannot fail.
		panic(err)
	}
	return data
}
