package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// register adds a client whose write pump exits immediately, so events stay
// in the Send buffer for inspection.
func register(h *Hub, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := h.AddClient(ctx, userID, nil)
	time.Sleep(10 * time.Millisecond)
	return client
}

func TestHubTracksConnectedUsers(t *testing.T) {
	h := NewHub(4, time.Minute, zap.NewNop())

	first := register(h, "u1")
	second := register(h, "u1")
	third := register(h, "u2")
	assert.Equal(t, 2, h.ConnectedUsers())

	h.RemoveClient(first)
	assert.Equal(t, 2, h.ConnectedUsers())
	h.RemoveClient(second)
	assert.Equal(t, 1, h.ConnectedUsers())
	h.RemoveClient(third)
	assert.Equal(t, 0, h.ConnectedUsers())
}

func TestBroadcastReachesEveryConnectionOfUser(t *testing.T) {
	h := NewHub(4, time.Minute, zap.NewNop())

	tab1 := register(h, "u1")
	tab2 := register(h, "u1")
	other := register(h, "u2")

	h.BroadcastToUsers([]string{"u1"}, Event{Type: "message:new"})

	for _, client := range []*Client{tab1, tab2} {
		select {
		case event := <-client.Send:
			assert.Equal(t, "message:new", event.Type)
		default:
			t.Fatal("expected buffered event")
		}
	}
	select {
	case <-other.Send:
		t.Fatal("event leaked to another user")
	default:
	}
}

func TestBroadcastSkipsSlowClients(t *testing.T) {
	h := NewHub(1, time.Minute, zap.NewNop())
	client := register(h, "u1")

	h.BroadcastToUsers([]string{"u1"}, Event{Type: "first"})
	// Buffer full; this one is dropped instead of blocking.
	h.BroadcastToUsers([]string{"u1"}, Event{Type: "second"})

	event := <-client.Send
	require.Equal(t, "first", event.Type)
	select {
	case <-client.Send:
		t.Fatal("slow client should have missed the second event")
	default:
	}
}

func TestBroadcastToUnknownUserIsNoop(t *testing.T) {
	h := NewHub(4, time.Minute, zap.NewNop())
	h.BroadcastToUsers([]string{"ghost"}, Event{Type: "noop"})
	assert.Equal(t, 0, h.ConnectedUsers())
}
