package kv

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Open(context.Background(), "redis://"+mr.Addr()+"/0", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenRejectsBadURL(t *testing.T) {
	_, err := Open(context.Background(), "not a url", zap.NewNop())
	assert.Error(t, err)
}
