package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAlphabet(t *testing.T, s, alphabet string) {
	t.Helper()
	for _, r := range s {
		assert.Truef(t, strings.ContainsRune(alphabet, r), "unexpected character %q in %q", r, s)
	}
}

func TestRoomCodeFormat(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := RoomCode()
		require.NoError(t, err)
		require.Len(t, code, RoomCodeLength)
		assertAlphabet(t, code, RoomCodeAlphabet)
	}
}

func TestRoomCodeAlphabetIsUnambiguous(t *testing.T) {
	assert.Len(t, RoomCodeAlphabet, 32)
	for _, r := range "IO01" {
		assert.NotContains(t, RoomCodeAlphabet, string(r))
	}
}

func TestSeatTokenFormat(t *testing.T) {
	assert.Len(t, TokenAlphabet, 36)
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		token, err := SeatToken()
		require.NoError(t, err)
		require.Len(t, token, SeatTokenLength)
		assertAlphabet(t, token, TokenAlphabet)
		_, dup := seen[token]
		require.False(t, dup, "seat token repeated")
		seen[token] = struct{}{}
	}
}

func TestPlayerIDFormat(t *testing.T) {
	id, err := PlayerID()
	require.NoError(t, err)
	assert.Len(t, id, PlayerIDLength)
	assertAlphabet(t, id, TokenAlphabet)
}
