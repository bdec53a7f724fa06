package gateway

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendToSocketTargetedDelivery(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := NewClient(h, nil, "auth-a")
	h.Register <- c

	require.True(t, h.SendToSocket(c.SocketID(), []byte("frame")))
	assert.Equal(t, []byte("frame"), <-c.send)

	assert.False(t, h.SendToSocket("no-such-socket", []byte("frame")))
}

// Targeted sends must never observe a send channel that Unregister has
// already closed: the send holds the hub's read lock and close happens under
// the write lock. A send on a closed channel panics, so a violation crashes
// this test.
func TestSendToSocketDuringDisconnectChurn(t *testing.T) {
	h := NewHub()
	go h.Run()

	var current atomic.Value
	current.Store("")
	done := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if id, _ := current.Load().(string); id != "" {
					h.SendToSocket(id, []byte("frame"))
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		c := NewClient(h, nil, "auth-a")
		h.Register <- c
		current.Store(c.socketID)
		h.Unregister <- c
	}

	close(done)
	wg.Wait()
}
