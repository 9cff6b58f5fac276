package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpen_NotConfigured(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "http://not-redis"}, nil)
	assert.ErrorContains(t, err, "invalid redis url")
}

func TestBrainKey(t *testing.T) {
	assert.Equal(t, "brain:main:hello world", BrainKey("main", "hello world"))
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
