package database

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClient_SetAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &RedisClient{Client: db}

	mock.ExpectSet("extract:text:abc", "note text", time.Hour).SetVal("OK")
	mock.ExpectGet("extract:text:abc").SetVal("note text")

	require.NoError(t, client.Set(context.Background(), "extract:text:abc", "note text", time.Hour))

	value, err := client.Get(context.Background(), "extract:text:abc")
	require.NoError(t, err)
	assert.Equal(t, "note text", value)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_GetMissingKey(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &RedisClient{Client: db}

	mock.ExpectGet("nope").RedisNil()

	_, err := client.Get(context.Background(), "nope")
	assert.Error(t, err)
}

func TestRedisClient_Del(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := &RedisClient{Client: db}

	mock.ExpectDel("a", "b").SetVal(2)

	assert.NoError(t, client.Del(context.Background(), "a", "b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
