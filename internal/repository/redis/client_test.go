package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestLeaderboard(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client, err := NewClient(ctx, addr, "")
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	lb := NewLeaderboard(client)

	require.NoError(t, lb.SubmitScore(ctx, "ana", 400))
	require.NoError(t, lb.SubmitScore(ctx, "ben", 800))
	require.NoError(t, lb.SubmitScore(ctx, "ana", 1200))
	require.NoError(t, lb.SubmitScore(ctx, "ben", 100)) // lower score is ignored

	top, err := lb.Top(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []domain.LeaderboardEntry{
		{PlayerName: "ana", Score: 1200},
		{PlayerName: "ben", Score: 800},
	}, top)

	top, err = lb.Top(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)

	top, err = lb.Top(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestNewClientUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := NewClient(ctx, "127.0.0.1:1", "")
	assert.NoError(t, err)
	assert.Nil(t, client)
}
