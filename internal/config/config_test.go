package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "https://unavatar.io/twitter", cfg.AvatarURL)
	assert.Equal(t, "0xce01f8eee7E479C928F8919abD53E553a36CeF67", cfg.ENSUniversalResolver)
	assert.True(t, cfg.ENSOffchainLookup)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.HTTPRetryMax)
	assert.Empty(t, cfg.AvatarProxyURL)
	assert.Empty(t, cfg.OtelEndpoint)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STATS_URL", "http://stats.local/")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("HTTP_RETRY_MAX", "0")
	t.Setenv("RATE_LIMIT_RPS", "1.5")
	t.Setenv("AVATAR_PROXY_URL", "https://corsproxy.io/?")
	t.Setenv("ENS_OFFCHAIN_LOOKUP", "false")

	cfg := Load()

	assert.Equal(t, "http://stats.local", cfg.StatsURL, "trailing slash should be trimmed")
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 0, cfg.HTTPRetryMax)
	assert.Equal(t, 1.5, cfg.RateLimitRPS)
	assert.Equal(t, "https://corsproxy.io/?", cfg.AvatarProxyURL)
	assert.False(t, cfg.ENSOffchainLookup)
}

func TestGetEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PEERCARD_TEST_INT", "many")
	t.Setenv("PEERCARD_TEST_FLOAT", "NaN-ish")
	t.Setenv("PEERCARD_TEST_BOOL", "perhaps")
	t.Setenv("PEERCARD_TEST_DURATION", "soon")

	assert.Equal(t, 7, GetEnvAsInt("PEERCARD_TEST_INT", 7))
	assert.Equal(t, 0.5, GetEnvAsFloat("PEERCARD_TEST_FLOAT", 0.5))
	assert.True(t, GetEnvAsBool("PEERCARD_TEST_BOOL", true))
	assert.Equal(t, time.Minute, GetEnvAsDuration("PEERCARD_TEST_DURATION", time.Minute))
}
