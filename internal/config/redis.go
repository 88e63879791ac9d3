package config

// The Redis client backs the shared login rate limiter when
// RATE_LIMIT_BACKEND=redis. If the server cannot be reached at startup,
// NewRedisClient returns nil and callers fall back to the in-memory limiter.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/spf13/viper"
)

// RedisConfig holds connection settings. REDIS_HOST/REDIS_PORT take
// precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

func setRedisDefaults(v *viper.Viper) {
    v.SetDefault("redis_addr", "localhost:6379")
    v.SetDefault("redis_db", 0)
    v.SetDefault("redis_tls", false)
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
    addr := v.GetString("redis_addr")
    host, port := v.GetString("redis_host"), v.GetString("redis_port")
    if host != "" && port != "" {
        addr = host + ":" + port
    }
    return RedisConfig{
        Addr:     strings.TrimSpace(addr),
        Password: v.GetString("redis_password"),
        DB:       v.GetInt("redis_db"),
        TLS:      v.GetBool("redis_tls"),
    }
}

// NewRedisClient connects and pings with a short timeout. The returned
// client is nil if the ping fails.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
