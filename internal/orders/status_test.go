package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	// want[status][action] is the resulting status; absent means refused.
	want := map[Status]map[Action]Status{
		StatusPending:   {ActionConfirm: StatusConfirmed, ActionCancel: StatusCancelled},
		StatusConfirmed: {ActionShip: StatusShipped, ActionCancel: StatusCancelled},
		StatusShipped:   {ActionComplete: StatusCompleted, ActionCancel: StatusCancelled},
		StatusCompleted: {},
		StatusCancelled: {},
	}

	for _, s := range Statuses {
		for _, a := range Actions {
			to, allowed := want[s][a]
			assert.Equal(t, allowed, CanApply(s, a), "%s from %s", a, s)
			if allowed {
				got, ok := Target(a)
				require.True(t, ok)
				assert.Equal(t, to, got, "%s from %s", a, s)
				assert.True(t, CanTransition(s, to))
			}
		}
	}
}

func TestTerminalStatusesAcceptNothing(t *testing.T) {
	for _, s := range Statuses {
		accepts := false
		for _, a := range Actions {
			accepts = accepts || CanApply(s, a)
		}
		assert.Equal(t, s.Terminal(), !accepts, s)
	}
}

func TestCanTransitionRejectsSkips(t *testing.T) {
	assert.False(t, CanTransition(StatusPending, StatusShipped))
	assert.False(t, CanTransition(StatusConfirmed, StatusCompleted))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}
	for _, bad := range []string{"", "refund", "CONFIRM", "delete", " ship ", "cancel\n"} {
		_, err := ParseAction(bad)
		assert.ErrorIs(t, err, ErrInvalidAction, bad)
	}
}
