package hub

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	msgs   [][]byte
	full   bool
	closed int
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	a, b, c := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "c"}
	h.Join(a, "R1")
	h.Join(b, "R1")
	h.Join(c, "R2")

	n := h.Broadcast("R1", []byte("hi"), "a")
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, c.count(), "other groups must not receive")

	assert.Equal(t, 2, h.Broadcast("R1", []byte("all"), ""))
}

func TestHub_BroadcastClosesFullConnections(t *testing.T) {
	h := NewHub()
	slow, fast := &fakeConn{id: "a", full: true}, &fakeConn{id: "b"}
	h.Join(slow, "R1")
	h.Join(fast, "R1")

	assert.Equal(t, 1, h.Broadcast("R1", []byte("x"), ""))
	assert.Equal(t, 1, slow.closeCount(), "slow connection must be closed")
	assert.Zero(t, fast.closeCount())
	assert.Equal(t, 1, fast.count())
}

func TestClient_CloseStopsSends(t *testing.T) {
	c := NewClient(NewHub(), nil, nil)
	assert.True(t, c.Send([]byte("a")))
	c.Close()
	c.Close()
	assert.False(t, c.Send([]byte("b")))
}

func TestHub_LeaveAndRemove(t *testing.T) {
	h := NewHub()
	a := &fakeConn{id: "a"}
	h.Join(a, "R1")
	h.Join(a, "R1")
	h.Join(a, "R2")
	assert.Equal(t, 1, h.Size("R1"))

	h.Leave("a", "R1")
	assert.Equal(t, 0, h.Size("R1"))
	assert.Equal(t, 1, h.Size("R2"))

	h.Remove("a")
	assert.Equal(t, 0, h.Size("R2"))
	assert.Empty(t, h.Members("R2"))
}

func TestHub_Evict(t *testing.T) {
	h := NewHub()
	h.Join(&fakeConn{id: "a"}, "R1")
	h.Join(&fakeConn{id: "b"}, "R1")
	h.Join(&fakeConn{id: "b"}, "R2")

	ids := h.Evict("R1")
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 0, h.Size("R1"))
	assert.Equal(t, 0, h.Broadcast("R1", []byte("x"), ""))
	assert.Equal(t, []string{"b"}, h.Members("R2"))
	assert.Empty(t, h.Evict("R1"))
}
