package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHubJoinAndLeaveRoom(t *testing.T) {
	hub := NewHub()
	a := &client{userID: "u1"}
	b := &client{userID: "u2"}
	hub.Attach(a)
	hub.Attach(b)

	hub.JoinRoom("room-1", a)
	hub.JoinRoom("room-1", b)
	assert.Equal(t, 2, hub.RoomSize("room-1"))
	assert.True(t, hub.InRoom("room-1", "u1"))

	hub.LeaveRoom("room-1", a)
	assert.Equal(t, 1, hub.RoomSize("room-1"))
	assert.False(t, hub.InRoom("room-1", "u1"))
	assert.True(t, hub.InRoom("room-1", "u2"))
}

func TestHubDetachRemovesEverywhere(t *testing.T) {
	hub := NewHub()
	a := &client{userID: "u1"}
	hub.Attach(a)
	hub.JoinRoom("room-1", a)
	hub.JoinRoom("room-2", a)

	hub.Detach(a)
	assert.Equal(t, 0, hub.RoomSize("room-1"))
	assert.Equal(t, 0, hub.RoomSize("room-2"))
	assert.Equal(t, 0, hub.UserConnections("u1"))
}

func TestHubDetachIsIdempotent(t *testing.T) {
	hub := NewHub()
	a := &client{userID: "u1"}
	hub.Attach(a)
	hub.Detach(a)
	hub.Detach(a)
	assert.Equal(t, 0, hub.UserConnections("u1"))
}

func TestHubTracksMultipleConnectionsPerUser(t *testing.T) {
	hub := NewHub()
	first := &client{userID: "u1"}
	second := &client{userID: "u1"}
	hub.Attach(first)
	hub.Attach(second)
	assert.Equal(t, 2, hub.UserConnections("u1"))

	hub.Detach(first)
	assert.Equal(t, 1, hub.UserConnections("u1"))
}
