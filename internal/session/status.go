package session

// Step is the user-visible stage of the join flow.
type Step int

const (
	// StepSelectingRoom is the initial stage: pick an existing room id or
	// create a new room.
	StepSelectingRoom Step = iota

	// StepEnteringUsername means a room is chosen and the user is picking
	// the name to claim.
	StepEnteringUsername

	// StepActive means the claim was accepted and chat traffic flows.
	StepActive

	// StepDisconnected is the closed chat view after a connection that was
	// Active is lost. The room id is retained so rejoin is fast.
	StepDisconnected
)

// String returns the string representation of a Step.
func (s Step) String() string {
	switch s {
	case StepSelectingRoom:
		return "selecting_room"
	case StepEnteringUsername:
		return "entering_username"
	case StepActive:
		return "active"
	case StepDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of the session connection.
type Status int

const (
	// StatusIdle means no connection exists.
	StatusIdle Status = iota

	// StatusConnecting means the transport is being established.
	StatusConnecting

	// StatusOpen means the transport is up and the claim has been sent.
	StatusOpen

	// StatusClosed is terminal for a connection instance; rejoining
	// creates a new instance.
	StatusClosed
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}
