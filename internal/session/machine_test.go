package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/roomchat/internal/log"
	"github.com/vovakirdan/roomchat/internal/proto"
)

type fakeDirectory struct {
	mu          sync.Mutex
	createID    string
	createErr   error
	existsOK    bool
	existsErr   error
	createCalls int
	existsCalls int
	existsGate  chan struct{} // when non-nil, Exists blocks until closed
}

func (d *fakeDirectory) Create(context.Context, string) (string, error) {
	d.mu.Lock()
	d.createCalls++
	id, err := d.createID, d.createErr
	d.mu.Unlock()
	return id, err
}

func (d *fakeDirectory) Exists(context.Context, string) (bool, error) {
	d.mu.Lock()
	d.existsCalls++
	gate := d.existsGate
	ok, err := d.existsOK, d.existsErr
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return ok, err
}

func newTestMachine(dir *fakeDirectory) (*Machine, *stubDialer) {
	dialer := &stubDialer{}
	m := NewMachine(dir, dialer, Options{}, log.Nop())
	return m, dialer
}

func TestCreateRoomAdvancesToUsernameEntry(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, _ := newTestMachine(dir)

	require.NoError(t, m.CreateRoom(context.Background(), "Test"))

	snap := m.Snapshot()
	assert.Equal(t, StepEnteringUsername, snap.Step)
	assert.Equal(t, "abc123", snap.RoomID)
}

func TestBlankInputNeverReachesTheNetwork(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123", existsOK: true}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	assert.ErrorIs(t, m.CreateRoom(ctx, "   "), ErrBlankInput)
	assert.ErrorIs(t, m.SubmitRoomID(ctx, ""), ErrBlankInput)
	assert.Equal(t, 0, dir.createCalls)
	assert.Equal(t, 0, dir.existsCalls)

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	assert.ErrorIs(t, m.SubmitUsername(ctx, "  \t"), ErrBlankInput)
	assert.Equal(t, 0, dialer.dials())

	assert.ErrorIs(t, m.Send(ctx, "   "), ErrBlankInput)
}

func TestSubmitRoomIDNotFoundStays(t *testing.T) {
	dir := &fakeDirectory{existsOK: false}
	m, _ := newTestMachine(dir)

	err := m.SubmitRoomID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	snap := m.Snapshot()
	assert.Equal(t, StepSelectingRoom, snap.Step)
	assert.Equal(t, "Room not found", snap.Notice)
	assert.Empty(t, snap.RoomID)
}

func TestDirectoryFailureSurfacesAndStays(t *testing.T) {
	dir := &fakeDirectory{existsErr: errors.New("connection refused")}
	m, _ := newTestMachine(dir)

	require.Error(t, m.SubmitRoomID(context.Background(), "abc123"))

	snap := m.Snapshot()
	assert.Equal(t, StepSelectingRoom, snap.Step)
	assert.Equal(t, "Failed to fetch room", snap.Notice)
}

// joinAsAlice advances a fresh machine to Active: room created, username
// claimed, claim accepted via the server's first users snapshot.
func joinAsAlice(t *testing.T, m *Machine, dialer *stubDialer) *stubTransport {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	require.NoError(t, m.SubmitUsername(ctx, "alice"))

	transport := dialer.transport(dialer.dials() - 1)
	transport.in <- []byte(`{"type":"users","users":["alice"]}`)

	require.Eventually(t, func() bool {
		return m.Snapshot().Step == StepActive
	}, time.Second, 10*time.Millisecond)
	return transport
}

func TestClaimAcceptedEntersActiveWithCleanState(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)

	transport := joinAsAlice(t, m, dialer)

	snap := m.Snapshot()
	assert.Equal(t, StepActive, snap.Step)
	assert.Equal(t, StatusOpen, snap.Status)
	assert.Equal(t, "abc123", snap.RoomID)
	assert.Equal(t, "alice", snap.Username)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Online)

	// The claim went out before anything else.
	writes := transport.written()
	require.NotEmpty(t, writes)
	var claim proto.Claim
	require.NoError(t, json.Unmarshal(writes[0], &claim))
	assert.Equal(t, "alice", claim.Username)
}

func TestPresenceSnapshotExcludesSelf(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)

	transport.in <- []byte(`{"type":"users","users":["alice","bob"]}`)

	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		return len(snap.Online) == 1 && snap.Online[0] == "bob"
	}, time.Second, 10*time.Millisecond)
}

func TestClaimRejectedReturnsToUsernameEntry(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	require.NoError(t, m.SubmitUsername(ctx, "alice"))

	transport := dialer.transport(0)
	transport.in <- []byte(`{"error":"Username already in use"}`)

	require.Eventually(t, func() bool {
		return m.Snapshot().Step == StepEnteringUsername && m.Snapshot().Status == StatusClosed
	}, time.Second, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, "abc123", snap.RoomID, "room id is retained for fast re-entry")
	assert.Equal(t, "Username is already taken", snap.Notice)
	assert.Eventually(t, transport.isClosed, time.Second, 10*time.Millisecond,
		"the client closes the connection itself on rejection")
}

func TestOtherRejectionReasonsPassVerbatim(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	require.NoError(t, m.SubmitUsername(ctx, "alice"))

	dialer.transport(0).in <- []byte(`{"error":"room is full"}`)

	require.Eventually(t, func() bool {
		return m.Snapshot().Notice == "room is full"
	}, time.Second, 10*time.Millisecond)
}

func TestSendAppendsOptimistically(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)

	require.NoError(t, m.Send(context.Background(), "hi"))

	// Appended immediately, before any server traffic.
	snap := m.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, Message{Text: "hi", Author: "alice", Origin: OriginLocal}, snap.Messages[0])

	writes := transport.written()
	require.Len(t, writes, 2) // claim, then chat
	var msg proto.ChatSend
	require.NoError(t, json.Unmarshal(writes[1], &msg))
	assert.Equal(t, "hi", msg.Message)
}

func TestSendGatedInEveryNonOpenState(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	// Idle, before any join.
	assert.ErrorIs(t, m.Send(ctx, "hi"), ErrNotOpen)

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	assert.ErrorIs(t, m.Send(ctx, "hi"), ErrNotOpen)

	// Claim pending: the connection is open but the session is not active.
	require.NoError(t, m.SubmitUsername(ctx, "alice"))
	assert.ErrorIs(t, m.Send(ctx, "hi"), ErrNotOpen)

	// Only the claim frame ever hit the wire.
	assert.Len(t, dialer.transport(0).written(), 1)

	// After exit.
	m.Exit()
	assert.ErrorIs(t, m.Send(ctx, "hi"), ErrNotOpen)
}

func TestMessageLogKeepsArrivalOrderWithoutDedup(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)
	ctx := context.Background()

	transport.in <- []byte(`{"type":"chat","username":"bob","message":"hello"}`)
	require.Eventually(t, func() bool { return len(m.Snapshot().Messages) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Send(ctx, "hello"))

	transport.in <- []byte(`{"type":"system","message":"carol joined the chat"}`)
	require.Eventually(t, func() bool { return len(m.Snapshot().Messages) == 3 }, time.Second, 10*time.Millisecond)

	msgs := m.Snapshot().Messages
	assert.Equal(t, Message{Text: "hello", Author: "bob", Origin: OriginRemote}, msgs[0])
	assert.Equal(t, Message{Text: "hello", Author: "alice", Origin: OriginLocal}, msgs[1])
	assert.Equal(t, Message{Text: "carol joined the chat", Origin: OriginSystem}, msgs[2])
}

func TestSecondJoinClosesFirstConnection(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	require.NoError(t, m.SubmitUsername(ctx, "alice"))
	require.NoError(t, m.SubmitUsername(ctx, "alice2"))

	require.Equal(t, 2, dialer.dials())
	first, second := dialer.transport(0), dialer.transport(1)
	assert.Eventually(t, first.isClosed, time.Second, 10*time.Millisecond)
	assert.False(t, second.isClosed())

	// The surviving connection still works end to end.
	second.in <- []byte(`{"type":"users","users":["alice2"]}`)
	require.Eventually(t, func() bool {
		return m.Snapshot().Step == StepActive
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice2", m.Snapshot().Username)
}

func TestRemoteDisconnectWhileActive(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)

	transport.in <- []byte(`{"type":"users","users":["alice","bob"]}`)
	require.Eventually(t, func() bool { return len(m.Snapshot().Online) == 1 }, time.Second, 10*time.Millisecond)

	transport.remoteClose()

	require.Eventually(t, func() bool {
		return m.Snapshot().Step == StepDisconnected
	}, time.Second, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, StatusClosed, snap.Status)
	assert.Empty(t, snap.Online)
	assert.Equal(t, "Disconnected from chat room", snap.Notice)
	assert.Equal(t, "abc123", snap.RoomID, "room id kept for rejoin")
}

func TestStaleDirectoryResponseIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	dir := &fakeDirectory{createID: "abc123", existsOK: true, existsGate: gate}
	m, dialer := newTestMachine(dir)
	ctx := context.Background()

	// A lookup for some other room hangs in flight...
	lookupDone := make(chan error, 1)
	go func() {
		lookupDone <- m.SubmitRoomID(ctx, "stale-room")
	}()
	require.Eventually(t, func() bool {
		dir.mu.Lock()
		defer dir.mu.Unlock()
		return dir.existsCalls == 1
	}, time.Second, 10*time.Millisecond)

	// ...while the user creates a room and goes all the way to Active.
	joinAsAlice(t, m, dialer)

	// The late response must not mutate anything.
	close(gate)
	require.NoError(t, <-lookupDone)

	snap := m.Snapshot()
	assert.Equal(t, StepActive, snap.Step)
	assert.Equal(t, "abc123", snap.RoomID)
}

func TestExitResetsToRoomSelection(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)

	transport.in <- []byte(`{"type":"chat","username":"bob","message":"hello"}`)
	require.Eventually(t, func() bool { return len(m.Snapshot().Messages) == 1 }, time.Second, 10*time.Millisecond)

	m.Exit()

	snap := m.Snapshot()
	assert.Equal(t, StepSelectingRoom, snap.Step)
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Online)
	assert.Empty(t, snap.RoomID)
	assert.True(t, transport.isClosed())
}

func TestConnectFailureStaysAtUsernameEntry(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	dialer := &stubDialer{dialErr: errors.New("connection refused")}
	m := NewMachine(dir, dialer, Options{}, log.Nop())
	ctx := context.Background()

	require.NoError(t, m.CreateRoom(ctx, "Test"))
	require.Error(t, m.SubmitUsername(ctx, "alice"))

	snap := m.Snapshot()
	assert.Equal(t, StepEnteringUsername, snap.Step)
	assert.Equal(t, StatusClosed, snap.Status)
	assert.Equal(t, "Connection failed", snap.Notice)
}

func TestUnknownFramesAreIgnoredWithoutStateChange(t *testing.T) {
	dir := &fakeDirectory{createID: "abc123"}
	m, dialer := newTestMachine(dir)
	transport := joinAsAlice(t, m, dialer)

	transport.in <- []byte(`{"type":"typing","username":"bob"}`)
	transport.in <- []byte(`{"type":"chat","username":"bob","message":"still here"}`)

	require.Eventually(t, func() bool { return len(m.Snapshot().Messages) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, StepActive, m.Snapshot().Step)
}
