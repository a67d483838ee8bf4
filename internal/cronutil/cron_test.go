package cronutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	require.True(t, Valid("*/30 * * * *"))
	require.False(t, Valid("not a cron expression"))
}

func TestNextTick(t *testing.T) {
	ref := time.Date(2026, 7, 31, 10, 15, 0, 0, time.UTC)
	next, err := NextTick("0 * * * *", ref)
	require.NoError(t, err)
	require.True(t, next.After(ref))
	require.Equal(t, 0, next.Minute())
}

func TestNextTick_InvalidExpression(t *testing.T) {
	_, err := NextTick("nonsense", time.Now())
	require.Error(t, err)
}
