// ABOUTME: Tests for the in-memory session store.
// ABOUTME: Covers create, touch, drop, channel cleanup and clear.

package mcp

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAssignsDistinctIDs(t *testing.T) {
	s := NewSessionStore()

	a := s.Create("chan-1")
	b := s.Create("chan-1")

	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err)
	assert.Equal(t, "chan-1", a.ChannelID)
	assert.Equal(t, 2, s.Len())
}

func TestSessionStore_Touch(t *testing.T) {
	s := NewSessionStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sess := s.Create("c")
	now = now.Add(time.Minute)

	assert.True(t, s.Touch(sess.ID))
	got, ok := s.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, now, got.LastSeen)
	assert.Equal(t, sess.CreatedAt, got.CreatedAt)

	assert.False(t, s.Touch("missing"))
}

func TestSessionStore_Drop(t *testing.T) {
	s := NewSessionStore()
	sess := s.Create("c")

	assert.True(t, s.Drop(sess.ID))
	assert.False(t, s.Drop(sess.ID))
	_, ok := s.Get(sess.ID)
	assert.False(t, ok)
}

func TestSessionStore_DropChannel(t *testing.T) {
	s := NewSessionStore()
	s.Create("a")
	s.Create("a")
	keep := s.Create("b")

	assert.Equal(t, 2, s.DropChannel("a"))
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get(keep.ID)
	assert.True(t, ok)
}

func TestSessionStore_Clear(t *testing.T) {
	s := NewSessionStore()
	s.Create("a")
	s.Create("b")

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSessionStore_Concurrent(t *testing.T) {
	s := NewSessionStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := s.Create("c")
			s.Touch(sess.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
