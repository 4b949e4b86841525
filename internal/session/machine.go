package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/proto"
)

var (
	// ErrBlankInput rejects empty or whitespace-only input locally; the
	// network is never consulted with blank input.
	ErrBlankInput = errors.New("input must not be blank")

	// ErrWrongStep means the action is not valid in the current step.
	ErrWrongStep = errors.New("action not valid in current step")

	// ErrRoomNotFound means the directory reports the room does not exist.
	ErrRoomNotFound = errors.New("room not found")
)

// Directory is the room-registry accessor the machine consults before
// joining. Implemented by directory.Client; tests inject fakes.
type Directory interface {
	Create(ctx context.Context, name string) (string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Options tune machine behavior.
type Options struct {
	// InferPresence enables join/leave inference from system text for
	// servers that never push users snapshots. Snapshots, when they do
	// arrive, always take precedence.
	InferPresence bool
}

// Snapshot is the externally observable state after a transition. The
// rendering layer reads snapshots; it never mutates machine state.
type Snapshot struct {
	Step     Step
	Status   Status
	RoomID   string
	Username string
	Messages []Message
	Online   []string
	Notice   string
}

// Machine drives the three-step flow: room selection, username entry, active
// chat. All transitions are serialized; events from the connection and
// results of directory calls are folded in under one lock, and late
// responses from a step the user has already left are discarded.
type Machine struct {
	directory Directory
	dialer    Dialer
	opts      Options
	log       *zerolog.Logger

	mu       sync.Mutex
	step     Step
	status   Status
	roomID   string
	username string
	notice   string

	conn    *Conn
	connGen int // bumped whenever the current connection is superseded
	dirGen  int // bumped on step transitions; stale directory results are dropped

	claimOK  bool
	msgs     MessageLog
	presence *Presence
}

// NewMachine builds a machine in the room-selection step.
func NewMachine(dir Directory, dialer Dialer, opts Options, logger *zerolog.Logger) *Machine {
	return &Machine{
		directory: dir,
		dialer:    dialer,
		opts:      opts,
		log:       logger,
		step:      StepSelectingRoom,
		status:    StatusIdle,
		presence:  NewPresence("", opts.InferPresence),
	}
}

// Snapshot returns a copy of the observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Step:     m.step,
		Status:   m.status,
		RoomID:   m.roomID,
		Username: m.username,
		Messages: m.msgs.Messages(),
		Online:   m.presence.List(),
		Notice:   m.notice,
	}
}

// CreateRoom asks the directory for a new room and, on success, stores the
// assigned id and advances to username entry. A response that arrives after
// the user has left the room-selection step is discarded.
func (m *Machine) CreateRoom(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		m.setNotice("Room name cannot be empty")
		return ErrBlankInput
	}

	m.mu.Lock()
	if m.step != StepSelectingRoom {
		m.mu.Unlock()
		return ErrWrongStep
	}
	gen := m.dirGen
	m.mu.Unlock()

	id, err := m.directory.Create(ctx, name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepSelectingRoom || gen != m.dirGen {
		m.log.Debug().Str("room", name).Msg("discarding stale create-room response")
		return nil
	}
	if err != nil {
		m.notice = "Failed to create room"
		return err
	}

	m.roomID = id
	m.notice = fmt.Sprintf("Room created with ID: %s", id)
	m.advance(StepEnteringUsername)
	return nil
}

// SubmitRoomID checks that the room exists and advances to username entry.
// A missing room surfaces a notice and stays in room selection; a late
// response is discarded like in CreateRoom.
func (m *Machine) SubmitRoomID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		m.setNotice("Room ID cannot be empty")
		return ErrBlankInput
	}

	m.mu.Lock()
	if m.step != StepSelectingRoom {
		m.mu.Unlock()
		return ErrWrongStep
	}
	gen := m.dirGen
	m.mu.Unlock()

	exists, err := m.directory.Exists(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepSelectingRoom || gen != m.dirGen {
		m.log.Debug().Str("room_id", id).Msg("discarding stale room lookup response")
		return nil
	}
	if err != nil {
		m.notice = "Failed to fetch room"
		return err
	}
	if !exists {
		m.notice = "Room not found"
		return ErrRoomNotFound
	}

	m.roomID = id
	m.notice = ""
	m.advance(StepEnteringUsername)
	return nil
}

// SubmitUsername opens the room connection claiming name. Any previous
// connection is force-closed first so at most one is ever live. The step
// stays at username entry until the claim is accepted; acceptance is the
// first inbound frame that is not a rejection.
func (m *Machine) SubmitUsername(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		m.setNotice("Username cannot be empty")
		return ErrBlankInput
	}

	m.mu.Lock()
	if m.step != StepEnteringUsername && m.step != StepDisconnected {
		m.mu.Unlock()
		return ErrWrongStep
	}
	prior := m.conn
	m.conn = nil
	m.connGen++
	token := m.connGen
	m.username = name
	m.step = StepEnteringUsername
	m.status = StatusConnecting
	m.claimOK = false
	m.presence = NewPresence(name, m.opts.InferPresence)
	m.notice = ""
	roomID := m.roomID
	m.mu.Unlock()

	if prior != nil {
		prior.Close("superseded by new join")
	}

	sink := func(ev Event) { m.handleConnEvent(token, ev) }
	conn, err := Open(ctx, m.dialer, roomID, name, sink, m.log)

	m.mu.Lock()
	if token != m.connGen {
		m.mu.Unlock()
		if conn != nil {
			conn.Close("superseded before start")
		}
		return nil
	}
	if err != nil {
		m.status = StatusClosed
		m.notice = "Connection failed"
		m.mu.Unlock()
		return err
	}
	m.conn = conn
	m.mu.Unlock()

	conn.Start()
	return nil
}

// Send transmits chat text and appends it to the log optimistically. It is
// a guarded no-op unless the session is active on an open connection.
func (m *Machine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlankInput
	}

	m.mu.Lock()
	if m.step != StepActive || !m.claimOK || m.status != StatusOpen || m.conn == nil {
		m.mu.Unlock()
		return ErrNotOpen
	}
	conn := m.conn
	author := m.username
	m.mu.Unlock()

	if err := conn.Send(ctx, text); err != nil {
		return err
	}

	// The server does not echo the sender's own message back, so the local
	// append is the only copy that will ever exist.
	m.mu.Lock()
	m.msgs.Append(Message{Text: text, Author: author, Origin: OriginLocal})
	m.mu.Unlock()
	return nil
}

// Exit leaves the room, closes any live connection, and resets the session
// to room selection. Safe to call at any point, including teardown.
func (m *Machine) Exit() {
	m.mu.Lock()
	toClose := m.conn
	m.conn = nil
	m.connGen++
	m.roomID = ""
	m.username = ""
	m.claimOK = false
	m.msgs.Reset()
	m.presence = NewPresence("", m.opts.InferPresence)
	m.notice = ""
	m.status = StatusIdle
	m.advance(StepSelectingRoom)
	m.mu.Unlock()

	if toClose != nil {
		toClose.Close("user exit")
	}
}

// advance moves to the next step and invalidates in-flight directory
// requests issued from the previous one. Callers hold m.mu.
func (m *Machine) advance(next Step) {
	m.step = next
	m.dirGen++
}

func (m *Machine) setNotice(notice string) {
	m.mu.Lock()
	m.notice = notice
	m.mu.Unlock()
}

// handleConnEvent folds one connection event into the machine. Events from a
// superseded connection carry a stale token and are discarded.
func (m *Machine) handleConnEvent(token int, ev Event) {
	m.mu.Lock()
	if token != m.connGen {
		m.mu.Unlock()
		return
	}

	var toClose *Conn
	switch ev.Kind {
	case EventOpen:
		m.status = StatusOpen

	case EventFrame:
		toClose = m.handleFrame(proto.Decode(ev.Frame))

	case EventTransportError:
		m.log.Warn().Err(ev.Err).Msg("connection transport error")
		m.notice = "Connection error"

	case EventClosed:
		m.conn = nil
		m.connGen++
		m.status = StatusClosed
		if m.claimOK {
			// Lost an active session: keep the room id for a fast
			// rejoin, drop presence, show the closed chat view.
			m.presence.Reset()
			if m.notice == "" {
				m.notice = "Disconnected from chat room"
			}
			m.claimOK = false
			m.advance(StepDisconnected)
		} else if m.step == StepEnteringUsername && m.notice == "" {
			m.notice = "Connection closed"
		}
	}
	m.mu.Unlock()

	if toClose != nil {
		toClose.Close("claim rejected")
	}
}

// handleFrame applies one decoded frame. Returns a connection to close when
// the server reported a fatal protocol error; the caller closes it outside
// the lock. Callers hold m.mu.
func (m *Machine) handleFrame(frame proto.Decoded) *Conn {
	if frame.Kind == proto.FrameIgnored {
		m.log.Debug().Msg("ignoring unrecognized frame")
		return nil
	}

	if frame.Kind == proto.FrameClaimRejected {
		if frame.Reason == proto.ReasonNameTaken {
			m.notice = "Username is already taken"
		} else {
			m.notice = frame.Reason
		}
		// The server leaves closing to us. Revert to username entry with
		// the room id preserved so re-entry is fast.
		toClose := m.conn
		m.conn = nil
		m.connGen++
		m.status = StatusClosed
		m.claimOK = false
		m.advance(StepEnteringUsername)
		return toClose
	}

	if !m.claimOK {
		// First non-rejection frame: the claim stands. Enter the room
		// with a clean log and presence view.
		m.claimOK = true
		m.msgs.Reset()
		m.presence.Reset()
		m.advance(StepActive)
	}

	switch frame.Kind {
	case proto.FrameChat:
		m.msgs.Append(Message{Text: frame.Text, Author: frame.User, Origin: OriginRemote})
	case proto.FrameSystem:
		m.msgs.Append(Message{Text: frame.Text, Origin: OriginSystem})
	}
	m.presence.Apply(frame)
	return nil
}
