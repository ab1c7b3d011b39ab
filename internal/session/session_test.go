package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := Identity{UserID: uuid.New(), Email: "a@b.c", Role: "student"}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestHubDeliversInOrder(t *testing.T) {
	h := NewHub()
	var order []string
	h.Subscribe(func(e Event) { order = append(order, "first:"+string(e.Type)) })
	h.Subscribe(func(e Event) { order = append(order, "second:"+string(e.Type)) })

	user := uuid.New()
	h.Publish(ProfileChanged, user)
	h.Publish(LoggedOut, user)

	assert.Equal(t, []string{
		"first:profile.changed", "second:profile.changed",
		"first:logout", "second:logout",
	}, order)

	var nilHub *Hub
	nilHub.Publish(LoggedOut, user)
}
