// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/paper-reader/internal/logger"
)

// NewRedisClient connects to the configured Redis and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	logger.Printf("NewRedisClient: addr=%s db=%d passwordSet=%v", cfg.Addr, cfg.DB, cfg.Password != "")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Errorf("NewRedisClient: failed to ping Redis: %v", err)
		client.Close()
		return nil, err
	}

	logger.Printf("NewRedisClient: successfully connected to Redis")
	return client, nil
}
