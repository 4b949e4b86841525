package proto

// Frame type tags used by the tagged protocol variant.
const (
	TypeChat   = "chat"
	TypeSystem = "system"
	TypeUsers  = "users"

	// ReasonNameTaken is the rejection reason the server sends when the
	// claimed username is already present in the room.
	ReasonNameTaken = "Username already in use"
)

// Claim is the first frame sent after the connection is established. It
// asserts the chosen username for this session; no other traffic is valid
// before it.
type Claim struct {
	Username string `json:"username"`
}

// ChatSend is the outbound chat frame. The username is established once via
// the claim and is not resent per message.
type ChatSend struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Envelope is the inbound wire shape for the tagged protocol variant. Exactly
// one payload is meaningful for a given Type; Error is set instead of Type
// when the server reports a protocol-level failure such as a rejected claim.
type Envelope struct {
	Type     string   `json:"type,omitempty"`
	Username string   `json:"username,omitempty"`
	Message  string   `json:"message,omitempty"`
	Users    []string `json:"users,omitempty"`
	Error    string   `json:"error,omitempty"`
}
