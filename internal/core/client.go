package core

// Client is a joined chat participant as seen by the hub. Frames carries
// encoded outbound frames; the transport layer drains it into the socket.
type Client struct {
	Username string
	Frames   chan []byte
}

// newClient constructs a client with a buffered frame channel. Slow
// consumers are dropped rather than blocking the room.
func newClient(username string) *Client {
	return &Client{
		Username: username,
		Frames:   make(chan []byte, 32),
	}
}
