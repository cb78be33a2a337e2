package config

import (
    "os"
    "strconv"
    "time"
)

// RateLimitPolicy is one sliding-window budget: Limit requests per Window
// for every client key.
type RateLimitPolicy struct {
    Limit  int
    Window time.Duration
}

type RateLimitConfig struct {
    Enabled      bool
    Prefix       string
    Reservations RateLimitPolicy
    Embed        RateLimitPolicy
    Debug        bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
        Reservations: RateLimitPolicy{
            Limit:  envInt("RATE_LIMIT_RESERVATIONS", 10),
            Window: envDur("RATE_LIMIT_RESERVATIONS_WINDOW", time.Minute),
        },
        Embed: RateLimitPolicy{
            Limit:  envInt("RATE_LIMIT_EMBED", 30),
            Window: envDur("RATE_LIMIT_EMBED_WINDOW", time.Minute),
        },
        Debug: envBool("RATE_LIMIT_DEBUG", false),
    }
    def.Reservations = def.Reservations.normalized()
    def.Embed = def.Embed.normalized()
    return def
}

func (p RateLimitPolicy) normalized() RateLimitPolicy {
    if p.Limit < 1 { p.Limit = 1 }
    if p.Window <= 0 { p.Window = time.Minute }
    return p
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envFloat(k string, d float64) float64 {
    v := os.Getenv(k); if v == "" { return d }
    if f, err := strconv.ParseFloat(v, 64); err == nil { return f }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
