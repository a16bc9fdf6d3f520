package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not-a-url://")
	assert.Error(t, err)
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Greater(t, cfg.PoolSize, cfg.MinIdleConns)
	assert.Equal(t, 3, cfg.MaxRetries)
}
