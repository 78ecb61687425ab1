// Package validation provides validation mechanisms for maker stats records.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zkp2p/peercard/internal/model"
)

// ErrInvalidStats is returned for records that break the stats invariants
var ErrInvalidStats = errors.New("invalid stats record")

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxVolume rejects implausible volume figures; zero disables the check
	MaxVolume decimal.Decimal

	// RequirePlatform determines if an empty platform label is rejected
	RequirePlatform bool
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxVolume:       decimal.NewFromInt(1_000_000_000_000),
		RequirePlatform: false,
	}
}

// ValidateStats checks a record against the default options.
// This is the main entrypoint for the validation package.
func ValidateStats(stats model.StatsRecord) error {
	return ValidateStatsWithOptions(stats, DefaultValidationOptions())
}

// ValidateStatsWithOptions checks a record with custom validation options.
// Decimal values are always finite, so only sign and range are checked.
func ValidateStatsWithOptions(stats model.StatsRecord, opts ValidationOptions) error {
	var problems []string

	if stats.Volume.IsNegative() {
		problems = append(problems, fmt.Sprintf("negative volume %s", stats.Volume))
	}
	if stats.Profit.IsNegative() {
		problems = append(problems, fmt.Sprintf("negative profit %s", stats.Profit))
	}
	if stats.Deposits < 0 {
		problems = append(problems, fmt.Sprintf("negative deposits %d", stats.Deposits))
	}
	if opts.MaxVolume.IsPositive() && stats.Volume.GreaterThan(opts.MaxVolume) {
		problems = append(problems, fmt.Sprintf("volume %s exceeds %s", stats.Volume, opts.MaxVolume))
	}
	if opts.RequirePlatform && strings.TrimSpace(stats.Platform) == "" {
		problems = append(problems, "missing platform")
	}

	if len(problems) > 0 {
		logrus.WithField("problems", problems).Debug("Stats record rejected")
		return fmt.Errorf("%w: %s", ErrInvalidStats, strings.Join(problems, "; "))
	}
	return nil
}
