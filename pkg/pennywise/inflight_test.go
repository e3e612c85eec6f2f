package pennywise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightGuard(t *testing.T) {
	g := newInflightGuard()

	release, err := g.acquire("budget", "update", "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, g.busy())

	_, err = g.acquire("budget", "update", "b1")
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	other, err := g.acquire("budget", "update", "b2")
	require.NoError(t, err, "different id is independent")
	other()

	otherOp, err := g.acquire("budget", "delete", "b1")
	require.NoError(t, err, "different operation is independent")
	otherOp()

	release()
	assert.Equal(t, 0, g.busy())

	again, err := g.acquire("budget", "update", "b1")
	require.NoError(t, err)
	again()
}
