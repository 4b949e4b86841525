package session

import (
	"strings"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// Presence maintains the ordered set of usernames currently considered
// online, always excluding the local user. It is updated only from decoded
// inbound frames: wholesale replacement on users snapshots and, when
// inference is enabled, best-effort join/leave parsing of system text.
//
// The inference path is string matching on human-readable notices and is not
// authoritative. Once a snapshot has been observed the server clearly speaks
// the snapshot-capable variant, so inference is disabled for good.
type Presence struct {
	local        string
	infer        bool
	snapshotSeen bool
	users        []string
}

// NewPresence builds a tracker for the given local username. infer enables
// the system-text heuristic for servers that never send snapshots.
func NewPresence(local string, infer bool) *Presence {
	return &Presence{local: local, infer: infer}
}

// Apply folds one decoded frame into the set. Chat and claim-rejection
// frames leave presence unchanged.
func (p *Presence) Apply(frame proto.Decoded) {
	switch frame.Kind {
	case proto.FrameUsers:
		p.snapshotSeen = true
		p.users = p.users[:0]
		for _, name := range frame.Users {
			if name == p.local {
				continue
			}
			p.users = append(p.users, name)
		}
	case proto.FrameSystem:
		if !p.infer || p.snapshotSeen {
			return
		}
		p.applySystemText(frame.Text)
	}
}

// applySystemText recognizes "<name> joined ..." and "<name> left ..."
// notices. Usernames containing whitespace defeat this; that is a known
// limitation of the heuristic, which only runs when no snapshot is available.
func (p *Presence) applySystemText(text string) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return
	}

	name := fields[0]
	switch fields[1] {
	case "joined":
		if name == p.local {
			return
		}
		// Last-seen join wins: move to the end if already present.
		p.remove(name)
		p.users = append(p.users, name)
	case "left":
		p.remove(name)
	}
}

func (p *Presence) remove(name string) {
	for i, u := range p.users {
		if u == name {
			p.users = append(p.users[:i], p.users[i+1:]...)
			return
		}
	}
}

// List returns a copy of the online usernames in insertion order.
func (p *Presence) List() []string {
	out := make([]string, len(p.users))
	copy(out, p.users)
	return out
}

// Reset empties the set, e.g. when the connection is lost.
func (p *Presence) Reset() {
	p.users = nil
}
