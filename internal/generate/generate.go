// Package generate runs the card pipeline: avatar fetch alongside identity
// resolution and stats fetch, then card construction. Only complete results
// are published, and only for the newest generation.
package generate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/zkp2p/peercard/internal/card"
	"github.com/zkp2p/peercard/internal/fetch"
	"github.com/zkp2p/peercard/internal/model"
	tracing "github.com/zkp2p/peercard/internal/otel"
)

var (
	// ErrMissingInput is returned when the handle or the identity input is empty
	ErrMissingInput = errors.New("handle and wallet address or ENS name are required")

	// ErrSuperseded is returned when a newer generation began before this one finished
	ErrSuperseded = errors.New("generation superseded by a newer request")

	// ErrNoResult is returned by Toggle before any generation succeeded
	ErrNoResult = errors.New("no card generated yet")
)

// IdentityResolver maps an ENS name or address to an identity
type IdentityResolver interface {
	Resolve(ctx context.Context, input string) (model.ResolvedIdentity, error)
}

// Request is one user-initiated generation
type Request struct {
	// Handle is the social handle, with or without a leading @
	Handle string

	// Input is an ENS name or a hex address
	Input string

	// ShowAddress toggles the address line on the card
	ShowAddress bool
}

// Result is a fully formed generation. It is never mutated once published.
type Result struct {
	Seq         uint64
	Handle      string
	Identity    model.ResolvedIdentity
	Stats       model.StatsRecord
	Avatar      image.Image
	Card        card.Model
	GeneratedAt time.Time
}

// Rebuild derives a copy of r with the address line toggled, without refetching
func (r *Result) Rebuild(showAddress bool) *Result {
	next := *r
	next.Card = card.Build(r.Identity, r.Stats, r.Avatar, showAddress)
	return &next
}

// Options tunes a Generator
type Options struct {
	// Timeout bounds each avatar and stats call; zero means no bound.
	// Identity resolution applies its own timeout.
	Timeout time.Duration

	// Metrics is optional
	Metrics *Metrics
}

// Generator builds cards from external lookups
type Generator struct {
	resolver IdentityResolver
	avatars  fetch.ImageFetcher
	stats    fetch.StatsProvider

	state   *State
	timeout time.Duration
	metrics *Metrics
	now     func() time.Time
}

// New creates a generator with an empty state
func New(resolver IdentityResolver, avatars fetch.ImageFetcher, stats fetch.StatsProvider, opts Options) *Generator {
	return &Generator{
		resolver: resolver,
		avatars:  avatars,
		stats:    stats,
		state:    NewState(),
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
}

// State returns the container holding the current result
func (g *Generator) State() *State {
	return g.state
}

// NormalizeHandle removes every @ and surrounding whitespace
func NormalizeHandle(handle string) string {
	return strings.TrimSpace(strings.ReplaceAll(handle, "@", ""))
}

// Generate runs the pipeline for req. On success the result becomes current
// unless a newer generation began meanwhile, in which case ErrSuperseded is
// returned and the result is discarded. On failure the current result is
// left untouched.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	handle := NormalizeHandle(req.Handle)
	input := strings.TrimSpace(req.Input)
	if handle == "" || input == "" {
		g.observe(OutcomeInvalid, start)
		return nil, ErrMissingInput
	}

	seq := g.state.Begin()

	ctx, span := tracing.Tracer().Start(ctx, "generate.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("peercard.handle", handle),
		attribute.Int64("peercard.seq", int64(seq)),
	)

	log := logrus.WithFields(logrus.Fields{
		"seq":    seq,
		"handle": handle,
		"input":  input,
	})
	log.Debug("Generating card")

	var (
		avatar   image.Image
		identity model.ResolvedIdentity
		stats    model.StatsRecord
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		img, err := g.fetchAvatar(egCtx, handle)
		if err != nil {
			return err
		}
		avatar = img
		return nil
	})
	eg.Go(func() error {
		id, err := g.resolver.Resolve(egCtx, input)
		if err != nil {
			g.fetchFailed(egCtx, SourceIdentity, err)
			return fmt.Errorf("failed to resolve identity: %w", err)
		}
		identity = id

		record, err := g.fetchStats(egCtx, id.Address)
		if err != nil {
			return err
		}
		stats = record
		return nil
	})

	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Warn("Card generation failed")
		g.observe(OutcomeFailure, start)
		return nil, err
	}

	result := &Result{
		Seq:         seq,
		Handle:      handle,
		Identity:    identity,
		Stats:       stats,
		Avatar:      avatar,
		Card:        card.Build(identity, stats, avatar, req.ShowAddress),
		GeneratedAt: g.now(),
	}

	if !g.state.Commit(seq, result) {
		log.Info("Discarding result of superseded generation")
		g.observe(OutcomeSuperseded, start)
		return nil, ErrSuperseded
	}

	if g.metrics != nil {
		g.metrics.cardBuilt(stats.Volume, result.Card.HighVolume())
	}
	g.observe(OutcomeSuccess, start)

	log.WithFields(logrus.Fields{
		"address":     identity.Address.Hex(),
		"label":       identity.DisplayLabel,
		"high_volume": result.Card.HighVolume(),
		"duration":    time.Since(start),
	}).Info("Card generated")

	return result, nil
}

// Toggle rebuilds the current card with the address line shown or hidden
func (g *Generator) Toggle(showAddress bool) (*Result, error) {
	result, ok := g.state.Replace(func(current *Result) *Result {
		return current.Rebuild(showAddress)
	})
	if !ok {
		return nil, ErrNoResult
	}
	return result, nil
}

// fetchAvatar returns nil without error when the handle has no picture
func (g *Generator) fetchAvatar(ctx context.Context, handle string) (image.Image, error) {
	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	img, err := g.avatars.FetchImage(callCtx, handle)
	switch {
	case errors.Is(err, fetch.ErrAvatarNotFound):
		logrus.WithField("handle", handle).Debug("No avatar for handle, leaving slot empty")
		return nil, nil
	case err != nil:
		g.fetchFailed(ctx, SourceAvatar, err)
		tracing.RecordError(callCtx, err)
		return nil, fmt.Errorf("failed to fetch avatar: %w", err)
	}
	return img, nil
}

func (g *Generator) fetchStats(ctx context.Context, addr common.Address) (model.StatsRecord, error) {
	callCtx, cancel := g.withTimeout(ctx)
	defer cancel()

	stats, err := g.stats.FetchStats(callCtx, addr)
	if err != nil {
		g.fetchFailed(ctx, SourceStats, err)
		tracing.RecordError(callCtx, err)
		return model.StatsRecord{}, fmt.Errorf("failed to fetch stats: %w", err)
	}
	return stats, nil
}

func (g *Generator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

func (g *Generator) observe(outcome string, start time.Time) {
	if g.metrics != nil {
		g.metrics.observe(outcome, time.Since(start).Seconds())
	}
}

// fetchFailed counts a failed call unless it was cut short because a sibling
// call already failed or the caller gave up
func (g *Generator) fetchFailed(groupCtx context.Context, source string, err error) {
	if errors.Is(err, context.Canceled) && groupCtx.Err() != nil {
		return
	}
	if g.metrics != nil {
		g.metrics.fetchFailed(source)
	}
}
