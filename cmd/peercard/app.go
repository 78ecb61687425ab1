package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zkp2p/peercard/internal/config"
	"github.com/zkp2p/peercard/internal/ens"
	"github.com/zkp2p/peercard/internal/fetch"
	"github.com/zkp2p/peercard/internal/generate"
	"github.com/zkp2p/peercard/internal/identity"
	"github.com/zkp2p/peercard/internal/render"
)

// app holds the wired collaborators of one CLI run
type app struct {
	cfg       config.Config
	names     *ens.Client
	resolver  *identity.Resolver
	generator *generate.Generator
	renderer  *render.Renderer
	metrics   *generate.Metrics
}

// newResolver dials the name service. Lookups are not retried so that the
// per-call timeout bounds the whole resolution.
func newResolver(ctx context.Context, cfg config.Config, limiter *rate.Limiter) (*ens.Client, *identity.Resolver, error) {
	if !common.IsHexAddress(cfg.ENSUniversalResolver) {
		return nil, nil, fmt.Errorf("invalid ENS universal resolver address %q", cfg.ENSUniversalResolver)
	}

	rpcHTTP := fetch.StandardClient(fetch.NewRetryClient(fetch.HTTPOptions{RetryMax: 0, Limiter: limiter}))

	names, err := ens.Dial(ctx, cfg.EthRPCEndpoint, common.HexToAddress(cfg.ENSUniversalResolver), rpcHTTP, cfg.ENSOffchainLookup)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to name service: %w", err)
	}
	return names, identity.NewResolver(names, cfg.RequestTimeout), nil
}

// newApp wires every client from cfg
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	limiter := fetch.NewLimiter(cfg)
	names, resolver, err := newResolver(ctx, cfg, limiter)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		names.Close()
		return nil, err
	}

	opts := fetch.OptionsFromConfig(cfg, limiter)
	metrics := generate.NewMetrics()
	gen := generate.New(
		resolver,
		fetch.NewAvatarClient(cfg, opts),
		fetch.NewStatsClient(cfg, opts),
		generate.Options{Timeout: cfg.RequestTimeout, Metrics: metrics},
	)

	logrus.WithFields(logrus.Fields{
		"rpc":        cfg.EthRPCEndpoint,
		"avatar_url": cfg.AvatarURL,
		"proxy":      cfg.AvatarProxyURL != "",
		"stats_url":  cfg.StatsURL,
		"timeout":    cfg.RequestTimeout,
		"retry_max":  cfg.HTTPRetryMax,
	}).Debug("Clients initialized")

	return &app{
		cfg:       cfg,
		names:     names,
		resolver:  resolver,
		generator: gen,
		renderer:  renderer,
		metrics:   metrics,
	}, nil
}

// close flushes metrics and releases the RPC connection
func (a *app) close() {
	if a.cfg.MetricsTextfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			logrus.WithError(err).Warn("Failed to write metrics")
		}
	}
	a.names.Close()
}
