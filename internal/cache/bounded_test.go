package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundedCache_GetSet(t *testing.T) {
	c := NewBoundedCache[string]("request", 10)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "3")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	c.Delete("a")
	assert.Equal(t, 1, c.Len())
}

func TestBoundedCache_SetNeverEvicts(t *testing.T) {
	c := NewBoundedCache[int]("request", 10)
	for i := 0; i < 25; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	assert.Equal(t, 25, c.Len())
}

func TestBoundedCache_TrimBelowThresholdIsNoop(t *testing.T) {
	c := NewBoundedCache[int]("request", 100)
	for i := 0; i < 80; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	assert.Equal(t, 0, c.Trim())
	assert.Equal(t, 80, c.Len())
}

func TestBoundedCache_TrimRemovesOldestFifth(t *testing.T) {
	c := NewBoundedCache[int]("request", 100)
	for i := 0; i < 90; i++ {
		c.Set(fmt.Sprint(i), i)
	}

	assert.Equal(t, 20, c.Trim())
	assert.Equal(t, 70, c.Len())

	_, ok := c.Get("19")
	assert.False(t, ok, "oldest entries should be evicted")
	_, ok = c.Get("20")
	assert.True(t, ok)
}

func TestBoundedCache_TrimOverflowEndsAtCapacity(t *testing.T) {
	c := NewBoundedCache[int]("response", DefaultCapacity)
	for i := 0; i < DefaultCapacity+50; i++ {
		c.Set(fmt.Sprint(i), i)
	}

	c.Trim()
	assert.LessOrEqual(t, c.Len(), DefaultCapacity)

	_, ok := c.Get(fmt.Sprint(DefaultCapacity + 49))
	assert.True(t, ok, "newest entry should survive")
}

func TestBoundedCache_Clear(t *testing.T) {
	c := NewBoundedCache[int]("request", 0)
	assert.Equal(t, DefaultCapacity, c.Capacity())

	c.Set("a", 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
