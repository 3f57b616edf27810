package asynqadp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInspector_InvalidRedisURI(t *testing.T) {
	_, err := NewInspector("not-a-redis-uri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=inspector.new")
}

func TestNewInspector_ValidRedisURI(t *testing.T) {
	insp, err := NewInspector("redis://localhost:6379/0")
	require.NoError(t, err)
	require.NotNil(t, insp)
}

func TestLookup_NoCandidateQueuesFound(t *testing.T) {
	insp, err := NewInspector("redis://localhost:6379/0")
	require.NoError(t, err)

	_, err = insp.Lookup(nil, "missing-task", []string{"default"})
	require.Error(t, err)
}
