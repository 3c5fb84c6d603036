package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateClassification(t *testing.T) {
	require.True(t, Pending.Active())
	require.True(t, Verifying.Active())
	require.False(t, Approved.Active())

	for _, s := range []State{Blocked, Executed, Expired} {
		require.True(t, s.Terminal(), s.String())
		require.False(t, s.Active(), s.String())
	}
	for _, s := range []State{Pending, Verifying, Approved} {
		require.False(t, s.Terminal(), s.String())
	}
}

func TestAllowedTransitions(t *testing.T) {
	allowed := [][2]State{
		{Pending, Verifying},
		{Verifying, Approved},
		{Verifying, Blocked},
		{Approved, Executed},
		// every non-terminal state may expire
		{Pending, Expired},
		{Verifying, Expired},
		{Approved, Expired},
	}
	for _, tr := range allowed {
		require.True(t, AllowedTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	forbidden := [][2]State{
		{Pending, Approved},
		{Pending, Blocked},
		{Verifying, Executed},
		{Approved, Blocked},
		{Blocked, Verifying},
		{Executed, Expired},
		{Expired, Verifying},
		{Blocked, Expired},
	}
	for _, tr := range forbidden {
		require.False(t, AllowedTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestStateStrings(t *testing.T) {
	require.Equal(t, "pending", Pending.String())
	require.Equal(t, "verifying", Verifying.String())
	require.Equal(t, "approved", Approved.String())
	require.Equal(t, "blocked", Blocked.String())
	require.Equal(t, "executed", Executed.String())
	require.Equal(t, "expired", Expired.String())
	require.Equal(t, "unknown", State(99).String())
}
