package session

// Origin says who produced a logged message.
type Origin int

const (
	// OriginLocal marks messages the local user authored.
	OriginLocal Origin = iota
	// OriginRemote marks messages from other participants.
	OriginRemote
	// OriginSystem marks server-generated notices; never attributed to a
	// username for display purposes.
	OriginSystem
)

// String returns the string representation of an Origin.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message is one rendered entry of the chat log. Immutable once appended.
type Message struct {
	Text   string
	Author string
	Origin Origin
}

// MessageLog is an append-only sequence of messages in exact arrival order.
// Local sends are appended optimistically before any server traffic; entries
// are never deduplicated or reordered.
type MessageLog struct {
	entries []Message
}

// Append adds a message at the end of the log.
func (l *MessageLog) Append(msg Message) {
	l.entries = append(l.entries, msg)
}

// Messages returns a copy of the log in arrival order.
func (l *MessageLog) Messages() []Message {
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of logged messages.
func (l *MessageLog) Len() int {
	return len(l.entries)
}

// Reset discards all entries, e.g. when a new room membership begins.
func (l *MessageLog) Reset() {
	l.entries = nil
}
