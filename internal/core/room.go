package core

// room groups the clients of one chat channel, keyed by claimed username.
// Join order is preserved for users snapshots.
type room struct {
	id      string
	clients map[string]*Client
	order   []string
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		clients: make(map[string]*Client),
	}
}

func (r *room) add(c *Client) bool {
	if _, exists := r.clients[c.Username]; exists {
		return false
	}
	r.clients[c.Username] = c
	r.order = append(r.order, c.Username)
	return true
}

func (r *room) remove(c *Client) bool {
	current, exists := r.clients[c.Username]
	if !exists || current != c {
		return false
	}
	delete(r.clients, c.Username)
	for i, name := range r.order {
		if name == c.Username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// usernames returns the online users in join order.
func (r *room) usernames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// broadcast queues frame for every client except skip (nil to reach all).
func (r *room) broadcast(frame []byte, skip *Client) {
	for _, name := range r.order {
		client := r.clients[name]
		if client == skip {
			continue
		}
		select {
		case client.Frames <- frame:
		default:
			// Drop if slow consumer.
		}
	}
}

func (r *room) empty() bool {
	return len(r.clients) == 0
}
