package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	s, err := NewRedisStoreFromURL(context.Background(), url, time.Hour, testDefaultAgent)
	require.NoError(t, err)
	defer s.Close()

	runStoreContract(t, s)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "conversation:abc:state", redisKey("abc"))
}
