package main

import (
	"testing"

	"github.com/StakeGuard/ShieldGate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChain_Order(t *testing.T) {
	chain := defaultChain(&config.Config{})

	names := make([]string, 0, len(chain))
	for i, cfg := range chain {
		assert.True(t, cfg.Enabled)
		if i > 0 {
			assert.Greater(t, cfg.Priority, chain[i-1].Priority)
		}
		names = append(names, cfg.Name)
	}

	assert.Equal(t, []string{
		"reputation_gate",
		"bot_detector",
		"behavior_analyzer",
		"rate_limiter",
		"brute_force",
		"honeypot",
		"request_integrity",
		"exfiltration",
	}, names)
}

func TestDefaultChain_HoneypotExemptionsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.HoneypotExemptPaths = []string{"/api/withdrawals"}

	for _, entry := range defaultChain(cfg) {
		if entry.Name != "honeypot" {
			continue
		}
		require.NotNil(t, entry.Settings)
		assert.Equal(t, []string{"/api/withdrawals"}, entry.Settings["exempt_path_prefixes"])
		return
	}
	t.Fatal("honeypot entry missing from chain")
}
