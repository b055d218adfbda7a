package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"

    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
)

// Policy class names used by the router.
const (
    PolicyAuth         = "auth"
    PolicyAdmin        = "admin"
    PolicyNotification = "notification"
    PolicyPublic       = "public"
)

// RateLimitConfig selects the counter backend and the fixed-window policy
// for each class of operations.  Backend "redis" shares counters between
// replicas; "memory" keeps them in process and sweeps expired windows every
// SweepInterval.
type RateLimitConfig struct {
    Enabled       bool
    Backend       string
    Prefix        string
    SweepInterval time.Duration
    Policies      map[string]ratelimit.Policy
}

// DefaultPolicies are used for every class not overridden by env or file.
func DefaultPolicies() map[string]ratelimit.Policy {
    return map[string]ratelimit.Policy{
        PolicyAuth:         {Name: PolicyAuth, Window: 15 * time.Minute, MaxRequests: 5},
        PolicyAdmin:        {Name: PolicyAdmin, Window: 15 * time.Minute, MaxRequests: 100},
        PolicyNotification: {Name: PolicyNotification, Window: time.Hour, MaxRequests: 10},
        PolicyPublic:       {Name: PolicyPublic, Window: 15 * time.Minute, MaxRequests: 300},
    }
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Per-policy overrides
// use RATE_LIMIT_<CLASS>_MAX and RATE_LIMIT_<CLASS>_WINDOW; a YAML file named
// by RATE_LIMIT_POLICY_FILE is applied first so env wins over file.
func LoadRateLimitConfig() (RateLimitConfig, error) {
    cfg := RateLimitConfig{
        Enabled:       envBool("RATE_LIMIT_ENABLED", true),
        Backend:       strings.ToLower(envStr("RATE_LIMIT_BACKEND", "memory")),
        Prefix:        envStr("RATE_LIMIT_PREFIX", "rl"),
        SweepInterval: envDur("RATE_LIMIT_SWEEP_INTERVAL", time.Minute),
        Policies:      DefaultPolicies(),
    }
    if path := os.Getenv("RATE_LIMIT_POLICY_FILE"); path != "" {
        raw, err := os.ReadFile(path)
        if err != nil {
            return cfg, fmt.Errorf("read policy file: %w", err)
        }
        if err := MergePolicyYAML(cfg.Policies, raw); err != nil {
            return cfg, err
        }
    }
    for name, p := range cfg.Policies {
        up := strings.ToUpper(name)
        p.MaxRequests = envInt("RATE_LIMIT_"+up+"_MAX", p.MaxRequests)
        p.Window = envDur("RATE_LIMIT_"+up+"_WINDOW", p.Window)
        cfg.Policies[name] = p
    }
    return cfg, nil
}

// MergePolicyYAML overlays policies from a document of the form
//
//  policies:
//    auth: {window: 15m, max_requests: 5}
//
// onto dst.  Unknown classes are added; zero fields keep the existing value.
func MergePolicyYAML(dst map[string]ratelimit.Policy, raw []byte) error {
    var doc struct {
        Policies map[string]ratelimit.Policy `yaml:"policies"`
    }
    if err := yaml.Unmarshal(raw, &doc); err != nil {
        return fmt.Errorf("parse policy file: %w", err)
    }
    for name, p := range doc.Policies {
        cur := dst[name]
        cur.Name = name
        if p.Window > 0 {
            cur.Window = p.Window
        }
        if p.MaxRequests > 0 {
            cur.MaxRequests = p.MaxRequests
        }
        if cur.Window <= 0 || cur.MaxRequests <= 0 {
            return fmt.Errorf("policy %q needs a positive window and max_requests", name)
        }
        dst[name] = cur
    }
    return nil
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" { return v }
    return d
}
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
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
