package config

// This file defines the Redis client constructor for the application.
// Redis backs two optional concerns: distributed rate limiting on the
// auth endpoints and response caching on read-heavy listing routes.
// Connection parameters come from environment variables.  If the
// server is unreachable at startup the constructor returns nil and
// both concerns degrade to pass-through.

import (
    "context"
    "strconv"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client from the environment:
//   REDIS_ADDR     – host:port (default localhost:6379)
//   REDIS_PASSWORD – optional password
//   REDIS_DB       – database number (default 0)
// The returned client may be nil if a connection cannot be
// established; callers must tolerate that.
func NewRedisClient() *redis.Client {
    addr := getenvDefault("REDIS_ADDR", "localhost:6379")
    dbNum := 0
    if s := getenvDefault("REDIS_DB", ""); s != "" {
        if n, err := strconv.Atoi(s); err == nil {
            dbNum = n
        }
    }
    client := redis.NewClient(&redis.Options{
        Addr:     addr,
        Password: getenvDefault("REDIS_PASSWORD", ""),
        DB:       dbNum,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        return nil
    }
    return client
}
