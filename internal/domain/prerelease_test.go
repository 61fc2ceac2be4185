package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrereleaseChannel(t *testing.T) {
	t.Run("Should default to none for empty input", func(t *testing.T) {
		ch, err := ParsePrereleaseChannel("")
		require.NoError(t, err)
		assert.Equal(t, PrereleaseNone, ch)
		assert.False(t, ch.IsPrerelease())
		assert.Empty(t, ch.Token())
	})
	t.Run("Should accept known channels case-insensitively", func(t *testing.T) {
		ch, err := ParsePrereleaseChannel(" RC ")
		require.NoError(t, err)
		assert.Equal(t, PrereleaseRC, ch)
		assert.True(t, ch.IsPrerelease())
		assert.Equal(t, "rc", ch.Token())
	})
	t.Run("Should reject unknown channels", func(t *testing.T) {
		_, err := ParsePrereleaseChannel("nightly")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nightly")
	})
}
