package proto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FrameKind classifies a decoded inbound frame.
type FrameKind int

const (
	// FrameIgnored marks a frame the codec does not recognize. Unknown
	// shapes are skipped, never treated as fatal.
	FrameIgnored FrameKind = iota
	// FrameChat is a chat message attributed to a participant.
	FrameChat
	// FrameSystem is a server-generated notice with no author.
	FrameSystem
	// FrameUsers is an authoritative snapshot of online usernames.
	FrameUsers
	// FrameClaimRejected means the server refused the identity claim or
	// reported another fatal protocol error; the client must close.
	FrameClaimRejected
)

// String returns the string representation of a FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FrameIgnored:
		return "ignored"
	case FrameChat:
		return "chat"
	case FrameSystem:
		return "system"
	case FrameUsers:
		return "users"
	case FrameClaimRejected:
		return "claim_rejected"
	default:
		return "unknown"
	}
}

// Decoded is the tagged result of decoding one inbound frame.
type Decoded struct {
	Kind   FrameKind
	User   string   // FrameChat
	Text   string   // FrameChat, FrameSystem
	Users  []string // FrameUsers
	Reason string   // FrameClaimRejected, server-supplied, passed through verbatim
}

// EncodeClaim builds the identity-claim frame for username.
func EncodeClaim(username string) ([]byte, error) {
	data, err := json.Marshal(Claim{Username: username})
	if err != nil {
		return nil, fmt.Errorf("marshal claim: %w", err)
	}
	return data, nil
}

// EncodeChat builds an outbound chat frame carrying text.
func EncodeChat(text string) ([]byte, error) {
	data, err := json.Marshal(ChatSend{Type: TypeChat, Message: text})
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	return data, nil
}

// Decode classifies a raw inbound frame. Frames from the tagged variant are
// JSON envelopes; the simpler variant sends bare text, which falls through to
// DecodePlain. Unrecognized shapes come back as FrameIgnored so an evolving
// server cannot crash the client.
func Decode(raw []byte) Decoded {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return DecodePlain(string(raw))
	}

	if env.Error != "" {
		return Decoded{Kind: FrameClaimRejected, Reason: env.Error}
	}

	switch env.Type {
	case TypeChat:
		return Decoded{Kind: FrameChat, User: env.Username, Text: env.Message}
	case TypeSystem:
		return Decoded{Kind: FrameSystem, Text: env.Message}
	case TypeUsers:
		return Decoded{Kind: FrameUsers, Users: env.Users}
	default:
		return Decoded{Kind: FrameIgnored}
	}
}

// DecodePlain classifies a frame from the untagged chat-only variant, where
// the server broadcasts bare text. "<name>: <text>" is a chat message; any
// other line is a system notice.
func DecodePlain(text string) Decoded {
	if name, msg, ok := strings.Cut(text, ": "); ok && name != "" && !strings.ContainsAny(name, " \t") {
		return Decoded{Kind: FrameChat, User: name, Text: msg}
	}
	return Decoded{Kind: FrameSystem, Text: text}
}
