package xid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndOrdered(t *testing.T) {
	first := New()
	second := New()

	require.True(t, Valid(first))
	require.True(t, Valid(second))
	require.NotEqual(t, first, second)
	require.Less(t, first, second)
}

func TestValidRejectsGarbage(t *testing.T) {
	require.False(t, Valid(""))
	require.False(t, Valid("prod-123"))
}
