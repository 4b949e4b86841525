package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/proto"
)

func mustFrame(t *testing.T, ch <-chan []byte, kind proto.FrameKind) proto.Decoded {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-ch:
			decoded := proto.Decode(raw)
			if decoded.Kind == kind {
				return decoded
			}
		case <-deadline:
			t.Fatalf("expected frame kind %v not received", kind)
			return proto.Decoded{}
		}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.Frames:
		default:
			return
		}
	}
}
