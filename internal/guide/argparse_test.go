package guide

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgs_BareFlag(t *testing.T) {
	result := ParseArgs([]string{"--verbose"})
	require.Equal(t, "true", result.Kwargs["verbose"])
	require.Empty(t, result.Errors)
}

func TestParseArgs_FlagWithValue(t *testing.T) {
	result := ParseArgs([]string{"--name=foo"})
	require.Equal(t, "foo", result.Kwargs["name"])
}

func TestParseArgs_BareKeyValue(t *testing.T) {
	result := ParseArgs([]string{"status=open"})
	require.Equal(t, "open", result.Kwargs["status"])
}

func TestParseArgs_Positional(t *testing.T) {
	result := ParseArgs([]string{"add-feature", "--force", "note=ship it"})
	require.Equal(t, []string{"add-feature"}, result.Positional)
	require.Equal(t, "true", result.Kwargs["force"])
	require.Equal(t, "ship it", result.Kwargs["note"])
}

func TestParseArgs_EmptyFlagIsError(t *testing.T) {
	result := ParseArgs([]string{"--"})
	require.Len(t, result.Errors, 1)
}

func TestParseArgs_ValidSchedule(t *testing.T) {
	result := ParseArgs([]string{"schedule=*/15 * * * *"})
	require.Empty(t, result.Errors)
}

func TestParseArgs_InvalidScheduleIsError(t *testing.T) {
	result := ParseArgs([]string{"schedule=not-a-cron-expr"})
	require.Len(t, result.Errors, 1)
}
