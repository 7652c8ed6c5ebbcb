package persistence

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := NewRedisClient(context.Background(), logger, &config.RedisConfig{URL: "http://not-redis"})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}
