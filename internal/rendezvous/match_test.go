package rendezvous

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchTableFirstSubmissionDoesNotMatch(t *testing.T) {
	table := NewMatchTable()
	a := &Session{}

	other, matched := table.Submit("token", a)
	require.False(t, matched)
	require.Nil(t, other)
	require.Equal(t, 1, table.Len())
}

func TestMatchTableSecondSubmissionMatchesAndClears(t *testing.T) {
	table := NewMatchTable()
	a := &Session{}
	b := &Session{}

	_, matched := table.Submit("token", a)
	require.False(t, matched)

	other, matched := table.Submit("token", b)
	require.True(t, matched)
	require.Same(t, a, other)
	require.Equal(t, 0, table.Len(), "the entry must be removed once matched")
}

func TestMatchTableThirdSubmissionStartsFreshPairing(t *testing.T) {
	table := NewMatchTable()
	a := &Session{}
	b := &Session{}
	c := &Session{}

	table.Submit("token", a)
	table.Submit("token", b) // matches a, clears the entry

	other, matched := table.Submit("token", c)
	require.False(t, matched, "a third submission after a match must start a new pairing, not match stale state")
	require.Nil(t, other)
}

func TestMatchTableDistinctTokensDoNotInterfere(t *testing.T) {
	table := NewMatchTable()
	a := &Session{}
	b := &Session{}

	table.Submit("alice-likes-bob", a)
	_, matched := table.Submit("carol-likes-dave", b)
	require.False(t, matched)
	require.Equal(t, 2, table.Len())
}
