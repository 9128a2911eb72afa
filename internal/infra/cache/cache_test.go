package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New[*domain.Profile](5 * time.Minute)
	defer c.Close()

	c.Set("p1", &domain.Profile{ID: "p1", Role: domain.RoleAgent})
	got, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, domain.RoleAgent, got.Role)
}

func TestCache_GetMiss(t *testing.T) {
	c := New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := New[string](time.Hour)
	defer c.Close()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("key1", "value1")
	_, ok := c.Get("key1")
	require.True(t, ok)

	now = now.Add(time.Hour)
	_, ok = c.Get("key1")
	assert.False(t, ok, "entry must expire exactly at its TTL")

	c.purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Delete(t *testing.T) {
	c := New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestCache_CloseTwice(t *testing.T) {
	c := New[string](time.Millisecond)
	c.Close()
	assert.NotPanics(t, c.Close)
}
