package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoom(id string, passcode bool) *Room {
	return NewRoom(id, &recPeer{}, passcode, newFakeClock(), NewWorld(), DefaultTimings(), zerolog.Nop())
}

func TestRegistryAddGetDelete(t *testing.T) {
	rr := NewRoomRegistry(0)
	r := testRoom("room-1", false)
	require.NoError(t, rr.Add(r))

	assert.Same(t, r, rr.Get("room-1"))
	assert.Nil(t, rr.Get("nope"))
	assert.Equal(t, 1, rr.Len())

	rr.Delete("room-1")
	rr.Delete("room-1")
	assert.Nil(t, rr.Get("room-1"))
	assert.Equal(t, 0, rr.Len())
	assert.Empty(t, rr.List())
}

func TestRegistryCap(t *testing.T) {
	rr := NewRoomRegistry(2)
	require.NoError(t, rr.Add(testRoom("a", false)))
	require.NoError(t, rr.Add(testRoom("b", false)))
	assert.ErrorIs(t, rr.Add(testRoom("c", false)), ErrServerFull)

	rr.Delete("a")
	assert.NoError(t, rr.Add(testRoom("c", false)))
}

func TestRegistryFindJoinableOldestFirst(t *testing.T) {
	rr := NewRoomRegistry(0)
	private := testRoom("private", true)
	full := testRoom("full", false)
	_, err := full.seat(&recPeer{})
	require.NoError(t, err)
	older := testRoom("older", false)
	newer := testRoom("newer", false)
	for _, r := range []*Room{private, full, older, newer} {
		require.NoError(t, rr.Add(r))
	}

	assert.Same(t, older, rr.FindJoinable())

	older.Phase = PhasePreGame
	assert.Same(t, newer, rr.FindJoinable())

	rr.Delete("newer")
	assert.Nil(t, rr.FindJoinable())
}

func TestRegistryListKeepsCreationOrder(t *testing.T) {
	rr := NewRoomRegistry(0)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, rr.Add(testRoom(id, false)))
	}
	rr.Delete("a")
	var ids []string
	for _, r := range rr.List() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)
}

func TestRoomSeatFillsFreeSlot(t *testing.T) {
	r := testRoom("r", true)
	n, err := r.seat(&recPeer{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = r.seat(&recPeer{})
	assert.ErrorIs(t, err, ErrRoomFull)
	assert.Equal(t, 2, r.PlayerCount())
}
