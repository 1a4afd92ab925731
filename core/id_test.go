package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Run("GeneratesPrefixedID", func(t *testing.T) {
		id := NewID("sm")

		assert.True(t, strings.HasPrefix(id, "sm_"))
		assert.Len(t, id, len("sm_")+26)
	})

	t.Run("NormalizesPrefix", func(t *testing.T) {
		id := NewID("  SI  ")

		assert.True(t, strings.HasPrefix(id, "si_"))
	})

	t.Run("PanicsOnEmptyPrefix", func(t *testing.T) {
		require.Panics(t, func() {
			NewID("")
		})
	})

	t.Run("GeneratesUniqueIDs", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := NewID("sm")
			require.False(t, seen[id], "duplicate ID generated: %s", id)
			seen[id] = true
		}
	})
}

func TestIsValidID(t *testing.T) {
	t.Run("AcceptsGeneratedIDs", func(t *testing.T) {
		assert.True(t, IsValidID(NewID("sm")))
		assert.True(t, IsValidID(NewID("si")))
	})

	t.Run("RejectsMalformedIDs", func(t *testing.T) {
		assert.False(t, IsValidID(""))
		assert.False(t, IsValidID("sm_"))
		assert.False(t, IsValidID("not-an-id"))
		assert.False(t, IsValidID("sm_tooshort"))
	})
}
