package config

// Redis backs the shared rate-limit counters and the template response
// cache.  Client parameters come from environment variables.  When the
// server cannot be reached at startup the caller gets the error and
// degrades: the limiter falls back to in-process counters and caching is
// disabled.

import (
    "context"
    "crypto/tls"
    "os"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisAddr resolves the server address.  Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port win when both are set)
// An empty result means Redis is not configured.
func RedisAddr() string {
    host := os.Getenv("REDIS_HOST")
    port := os.Getenv("REDIS_PORT")
    if host != "" && port != "" {
        return host + ":" + port
    }
    return os.Getenv("REDIS_ADDR")
}

// NewRedisClient instantiates a Redis client for addr and pings it.
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
    var tlsConf *tls.Config
    if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    client := redis.NewClient(&redis.Options{
        Addr:         addr,
        Password:     os.Getenv("REDIS_PASSWORD"),
        DB:           envInt("REDIS_DB", 0),
        TLSConfig:    tlsConf,
        ReadTimeout:  envDur("REDIS_READ_TIMEOUT", 200*time.Millisecond),
        WriteTimeout: envDur("REDIS_WRITE_TIMEOUT", 200*time.Millisecond),
    })
    pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := client.Ping(pingCtx).Err(); err != nil {
        _ = client.Close()
        return nil, err
    }
    return client, nil
}
