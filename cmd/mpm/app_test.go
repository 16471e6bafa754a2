package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	args, err := splitArgs(`holder new alice --email "a b@example.com"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"holder", "new", "alice", "--email", "a b@example.com"}, args)
}

func TestSplitArgs_UnterminatedQuote(t *testing.T) {
	_, err := splitArgs(`secret new "unterminated`)
	assert.Error(t, err)
}
