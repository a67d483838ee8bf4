package filecache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCache_PutGet_Hit(t *testing.T) {
	c := New(0, 0)
	now := time.Now()
	c.Put("a.txt", "hello", now)

	got, ok := c.Get("a.txt", nil)
	require.True(t, ok)
	require.Equal(t, "hello", got)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 0, stats.Misses)
}

func TestCache_Get_Miss(t *testing.T) {
	c := New(0, 0)
	_, ok := c.Get("missing.txt", nil)
	require.False(t, ok)
	require.EqualValues(t, 1, c.Stats().Misses)
}

func TestCache_Get_StaleMtimeInvalidates(t *testing.T) {
	c := New(0, 0)
	old := time.Now().Add(-time.Hour)
	c.Put("a.txt", "hello", old)

	newer := time.Now()
	_, ok := c.Get("a.txt", &newer)
	require.False(t, ok)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Invalidations)
	require.Equal(t, 0, stats.Entries)
}

func TestCache_OversizeEntryRejectedOutright(t *testing.T) {
	c := New(10, 0)
	c.Put("big.txt", strings.Repeat("x", 100), time.Now())

	_, ok := c.Get("big.txt", nil)
	require.False(t, ok, "an entry larger than MaxSize must never be stored")
	require.Equal(t, 0, c.Stats().Entries)
}

func TestCache_EvictsLRUWhenEntryCountExceeded(t *testing.T) {
	c := New(0, 2)
	c.Put("a", "1", time.Now())
	c.Put("b", "2", time.Now())
	c.Put("c", "3", time.Now())

	_, ok := c.Get("a", nil)
	require.False(t, ok, "oldest entry should have been evicted")

	stats := c.Stats()
	require.Equal(t, 2, stats.Entries)
	require.EqualValues(t, 1, stats.Evictions)
}

func TestCache_EvictsLRUWhenSizeExceeded(t *testing.T) {
	c := New(10, 0)
	c.Put("a", "12345", time.Now())
	c.Put("b", "12345", time.Now())
	c.Put("c", "12345", time.Now())

	_, ok := c.Get("a", nil)
	require.False(t, ok)
	require.LessOrEqual(t, c.Stats().SizeBytes, 10)
}

func TestCache_RecentlyUsedSurvivesEviction(t *testing.T) {
	c := New(0, 2)
	c.Put("a", "1", time.Now())
	c.Put("b", "2", time.Now())

	_, _ = c.Get("a", nil) // touch a, making b the LRU entry
	c.Put("c", "3", time.Now())

	_, okA := c.Get("a", nil)
	_, okB := c.Get("b", nil)
	require.True(t, okA)
	require.False(t, okB)
}

func TestCache_Invalidate(t *testing.T) {
	c := New(0, 0)
	c.Put("a", "1", time.Now())
	require.True(t, c.Invalidate("a"))
	require.False(t, c.Invalidate("a"))

	_, ok := c.Get("a", nil)
	require.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := New(0, 0)
	c.Put("a", "1", time.Now())
	c.Put("b", "2", time.Now())
	c.Clear()

	require.Equal(t, 0, c.Stats().Entries)
	require.Equal(t, 0, c.Stats().SizeBytes)
}

func TestCache_Stats_HitRate(t *testing.T) {
	c := New(0, 0)
	c.Put("a", "1", time.Now())
	_, _ = c.Get("a", nil)
	_, _ = c.Get("missing", nil)

	stats := c.Stats()
	require.InDelta(t, 0.5, stats.HitRate, 0.0001)
}
