// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Ethereum JSON-RPC endpoint used for ENS lookups
	EthRPCEndpoint string

	// ENS universal resolver contract address
	ENSUniversalResolver string

	// Follow EIP-3668 offchain lookups for names served by gateways
	ENSOffchainLookup bool

	// Base URL of the avatar service, the handle is appended as a path segment
	AvatarURL string

	// Optional pass-through proxy prefix for avatar requests
	AvatarProxyURL string

	// Base URL and credentials of the maker stats API
	StatsURL    string
	StatsAPIKey string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Path of a Prometheus textfile written after each run
	MetricsTextfile string

	// Timeout applied to every external call
	RequestTimeout time.Duration

	// Retries for the avatar and stats clients. Name service lookups never retry.
	HTTPRetryMax int

	// Outbound request rate limit shared by all HTTP clients
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		EthRPCEndpoint:       GetEnvOrDefault("ETH_RPC_ENDPOINT", "https://cloudflare-eth.com"),
		ENSUniversalResolver: GetEnvOrDefault("ENS_UNIVERSAL_RESOLVER", "0xce01f8eee7E479C928F8919abD53E553a36CeF67"),
		ENSOffchainLookup:    GetEnvAsBool("ENS_OFFCHAIN_LOOKUP", true),
		AvatarURL:            strings.TrimRight(GetEnvOrDefault("AVATAR_URL", "https://unavatar.io/twitter"), "/"),
		AvatarProxyURL:       GetEnvOrDefault("AVATAR_PROXY_URL", ""),
		StatsURL:             strings.TrimRight(GetEnvOrDefault("STATS_URL", "https://api.zkp2p.xyz"), "/"),
		StatsAPIKey:          GetEnvOrDefault("STATS_API_KEY", ""),
		OtelEndpoint:         GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsTextfile:      GetEnvOrDefault("METRICS_TEXTFILE", ""),
		RequestTimeout:       GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		HTTPRetryMax:         GetEnvAsInt("HTTP_RETRY_MAX", 2),
		RateLimitRPS:         GetEnvAsFloat("RATE_LIMIT_RPS", 5.0),
		RateLimitBurst:       GetEnvAsInt("RATE_LIMIT_BURST", 5),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
