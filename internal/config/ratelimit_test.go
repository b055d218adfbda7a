package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.Equal(t, 5, p[PolicyAuth].MaxRequests)
	assert.Equal(t, 15*time.Minute, p[PolicyAuth].Window)
	assert.Equal(t, 100, p[PolicyAdmin].MaxRequests)
	assert.Equal(t, 10, p[PolicyNotification].MaxRequests)
	assert.Equal(t, time.Hour, p[PolicyNotification].Window)
	for name, pol := range p {
		assert.Equal(t, name, pol.Name)
	}
}

func TestMergePolicyYAML(t *testing.T) {
	dst := DefaultPolicies()
	raw := []byte(`
policies:
  auth:
    max_requests: 3
  export:
    window: 1m
    max_requests: 2
`)
	require.NoError(t, MergePolicyYAML(dst, raw))
	assert.Equal(t, 3, dst[PolicyAuth].MaxRequests)
	assert.Equal(t, 15*time.Minute, dst[PolicyAuth].Window, "unset window keeps default")
	assert.Equal(t, "export", dst["export"].Name)
	assert.Equal(t, time.Minute, dst["export"].Window)
}

func TestMergePolicyYAML_RejectsIncompleteNewPolicy(t *testing.T) {
	err := MergePolicyYAML(DefaultPolicies(), []byte("policies:\n  export:\n    max_requests: 2\n"))
	assert.Error(t, err)
}

func TestLoadRateLimitConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policies:\n  admin:\n    max_requests: 7\n"), 0o600))
	t.Setenv("RATE_LIMIT_POLICY_FILE", path)
	t.Setenv("RATE_LIMIT_PUBLIC_MAX", "42")
	t.Setenv("RATE_LIMIT_AUTH_WINDOW", "1m")

	cfg, err := LoadRateLimitConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 7, cfg.Policies[PolicyAdmin].MaxRequests)
	assert.Equal(t, 42, cfg.Policies[PolicyPublic].MaxRequests)
	assert.Equal(t, time.Minute, cfg.Policies[PolicyAuth].Window)
}
