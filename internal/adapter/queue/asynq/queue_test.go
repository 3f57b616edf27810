package asynqadp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidRedisURI(t *testing.T) {
	_, err := New("not-a-redis-uri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=queue.new")
}

func TestNew_ValidRedisURI(t *testing.T) {
	q, err := New("redis://localhost:6379/0")
	require.NoError(t, err)
	require.NotNil(t, q)
	require.NoError(t, q.Close())
}
