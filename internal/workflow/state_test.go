package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseState_ParsesFieldsAndQueue(t *testing.T) {
	content := `Phase: implementation
Issue: GW-42
Tracking: openspec/changes/add-bridge
Description: wiring the agent-fs bridge
Queue:
- write tests
- update docs
`
	s := ParseState(content)
	require.NotNil(t, s)
	require.Equal(t, "implementation", s.Phase)
	require.Equal(t, "GW-42", s.Issue)
	require.Equal(t, "openspec/changes/add-bridge", s.Tracking)
	require.Equal(t, "wiring the agent-fs bridge", s.Description)
	require.Equal(t, []string{"write tests", "update docs"}, s.Queue)
}

func TestParseState_ReturnsNilWithoutPhase(t *testing.T) {
	s := ParseState("Issue: GW-1\n")
	require.Nil(t, s)
}

func TestParseState_IgnoresHeadingMarkup(t *testing.T) {
	s := ParseState("## Phase: review\n")
	require.NotNil(t, s)
	require.Equal(t, "review", s.Phase)
}
