package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatch_UsageErrors(t *testing.T) {
	o := opts{path: t.TempDir(), log: zap.NewNop()}

	for _, args := range [][]string{
		{"bogus"},
		{"create"},
		{"create", "a", "b", "c"},
	} {
		err := dispatch(args, o)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestDispatch_CreateIsOffline(t *testing.T) {
	dir := t.TempDir()
	o := opts{path: dir, log: zap.NewNop()}

	require.NoError(t, dispatch([]string{"create", "add_refund_reason", "refund reason column"}, o))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIntArg(t *testing.T) {
	n, err := intArg([]string{"-2"}, "step <n>")
	require.NoError(t, err)
	assert.Equal(t, -2, n)

	_, err = intArg(nil, "step <n>")
	assert.ErrorIs(t, err, errUsage)
	_, err = intArg([]string{"two"}, "step <n>")
	assert.ErrorIs(t, err, errUsage)
}

func TestCommandsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range commands {
		assert.False(t, seen[c.name], c.name)
		seen[c.name] = true
		assert.True(t, (c.offline == nil) != (c.migrate == nil), c.name)
	}
}
