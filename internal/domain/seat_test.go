package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alice#abcd", DisplayName("Alice", "abcdefghijklmnopqrstuvwxyz012345"))
	assert.Equal(t, "#ab", DisplayName("", "ab"))
	assert.Equal(t, "Bob#k3x9", DisplayName("  Bob ", "k3x9zzzz"))
}

func TestSeatIsHost(t *testing.T) {
	host := Seat{SeatID: SeatLabel(1)}
	guest := Seat{SeatID: SeatLabel(2)}
	assert.True(t, host.IsHost())
	assert.False(t, guest.IsHost())
	assert.Equal(t, "seat-12", SeatLabel(12))
}
