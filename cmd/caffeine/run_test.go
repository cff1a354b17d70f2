package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSymbolicArgs(t *testing.T) {
	args, err := parseSymbolicArgs([]string{"x:32", "y:8"})
	assert.NoError(t, err)
	assert.Len(t, args, 2)
	assert.Equal(t, "x", args[0].Name)
	assert.Equal(t, uint(32), args[0].Width)
	assert.Equal(t, "y", args[1].Name)
	assert.Equal(t, uint(8), args[1].Width)
}

func TestParseSymbolicArgs_RejectsMissingWidth(t *testing.T) {
	_, err := parseSymbolicArgs([]string{"x"})
	assert.Error(t, err)
}

func TestParseSymbolicArgs_RejectsNonNumericWidth(t *testing.T) {
	_, err := parseSymbolicArgs([]string{"x:abc"})
	assert.Error(t, err)
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCodeOf(nil))
	assert.Equal(t, ExitFailureFound, exitCodeOf(errors.New("boom")))
	assert.Equal(t, ExitConfig, exitCodeOf(withExitCode(errors.New("boom"), ExitConfig)))
}

func TestNewSearchStore_UnknownStrategy(t *testing.T) {
	_, err := newSearchStore("bogus", "")
	assert.Error(t, err)
}

func TestNewSearchStore_DFS(t *testing.T) {
	s, err := newSearchStore("dfs", "")
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Size())
}
