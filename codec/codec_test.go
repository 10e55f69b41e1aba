package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reroaring/internal/bitmap"
)

func TestCodecsAgree(t *testing.T) {
	st := benchStats()

	std, err := JSON{}.Marshal(st)
	require.NoError(t, err)
	fast, err := GoJSON{}.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(fast))

	var back bitmap.Stats
	require.NoError(t, GoJSON{}.Unmarshal(std, &back))
	assert.Equal(t, st, back)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("gob")
	assert.False(t, ok)
	assert.Equal(t, "go-json", Default.Name())
}
