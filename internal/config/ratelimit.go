package config

import (
    "strings"
    "time"

    "github.com/spf13/viper"
)

// RateLimitConfig controls the fixed-window limiter in front of login.
type RateLimitConfig struct {
    Enabled bool
    Max     int           // attempts allowed per window
    Window  time.Duration // window length
    Backend string        // "memory" or "redis"
    Prefix  string        // key prefix for stored counters
    Debug   bool
}

func setRateLimitDefaults(v *viper.Viper) {
    v.SetDefault("login_rate_limit_enabled", true)
    v.SetDefault("login_rate_limit_max", 5)
    v.SetDefault("login_rate_limit_window", 15*time.Minute)
    v.SetDefault("rate_limit_backend", "memory")
    v.SetDefault("rate_limit_prefix", "rl")
    v.SetDefault("rate_limit_debug", false)
}

func loadRateLimitConfig(v *viper.Viper) RateLimitConfig {
    def := RateLimitConfig{
        Enabled: v.GetBool("login_rate_limit_enabled"),
        Max:     v.GetInt("login_rate_limit_max"),
        Window:  v.GetDuration("login_rate_limit_window"),
        Backend: strings.ToLower(v.GetString("rate_limit_backend")),
        Prefix:  v.GetString("rate_limit_prefix"),
        Debug:   v.GetBool("rate_limit_debug"),
    }
    if def.Max < 1 { def.Max = 1 }
    if def.Window <= 0 { def.Window = 15 * time.Minute }
    if def.Backend != "redis" { def.Backend = "memory" }
    if def.Prefix == "" { def.Prefix = "rl" }
    return def
}
