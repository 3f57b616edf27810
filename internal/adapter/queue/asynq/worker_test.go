package asynqadp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
)

func TestNewWorker_InvalidRedisURI(t *testing.T) {
	rt, err := config.LoadRoutingTable("../../../../config/routing.yaml")
	require.NoError(t, err)

	_, err = NewWorker("not-a-redis-uri", rt, config.Config{}, nil)
	require.Error(t, err)
}

func TestNewWorker_ValidRedisURI(t *testing.T) {
	rt, err := config.LoadRoutingTable("../../../../config/routing.yaml")
	require.NoError(t, err)

	cfg := config.Config{DefaultQueueConcurrency: 4, TripoOtherQueueConcurrency: 1, TripoRefineQueueConcurrency: 1}
	w, err := NewWorker("redis://localhost:6379/0", rt, cfg, stubRunner{})
	require.NoError(t, err)
	require.NotNil(t, w)
}

type stubRunner struct{}

func (stubRunner) Run(ctx domain.Context, payload domain.GenerationTaskPayload) error { return nil }
