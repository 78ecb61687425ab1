// Package identity turns user input into a resolved account identity.
//
// Input ending in .eth is forward-resolved through the name service. A raw
// 0x-prefixed address is reverse-resolved, and a missing or failing reverse
// lookup falls back to a truncated address label instead of an error.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zkp2p/peercard/internal/ens"
	"github.com/zkp2p/peercard/internal/model"
	tracing "github.com/zkp2p/peercard/internal/otel"
)

const (
	// NameSuffix marks input that is treated as an ENS name
	NameSuffix = ".eth"

	// AddressLength is the length of a 0x-prefixed hex address
	AddressLength = 42

	// TruncatePrefix and TruncateSuffix are the characters kept from an address label
	TruncatePrefix = 6
	TruncateSuffix = 4

	// Ellipsis joins the kept parts of a truncated address
	Ellipsis = "..."
)

// NameService is the lookup capability the resolver depends on
type NameService interface {
	Forward(ctx context.Context, name string) (common.Address, error)
	Reverse(ctx context.Context, addr common.Address) (string, error)
}

// Resolver classifies and resolves wallet input
type Resolver struct {
	names   NameService
	timeout time.Duration
}

// NewResolver creates a resolver. A positive timeout bounds every lookup.
func NewResolver(names NameService, timeout time.Duration) *Resolver {
	return &Resolver{
		names:   names,
		timeout: timeout,
	}
}

// Resolve maps input to an identity or fails with a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, input string) (model.ResolvedIdentity, error) {
	ctx, span := tracing.Tracer().Start(ctx, "identity.Resolve")
	defer span.End()

	trimmed := strings.TrimSpace(input)
	span.SetAttributes(attribute.String("peercard.input", trimmed))

	var (
		id  model.ResolvedIdentity
		err error
	)
	switch {
	case IsName(trimmed):
		id, err = r.forward(ctx, trimmed)
	case IsAddress(trimmed):
		if common.HexToAddress(trimmed) == (common.Address{}) {
			err = &ResolutionError{Kind: InvalidFormat, Input: trimmed}
			break
		}
		id = r.reverse(ctx, trimmed)
	default:
		err = &ResolutionError{Kind: InvalidFormat, Input: trimmed}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.ResolvedIdentity{}, err
	}
	return id, nil
}

// forward looks up the address bound to name
func (r *Resolver) forward(ctx context.Context, name string) (model.ResolvedIdentity, error) {
	lookupCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	addr, err := r.names.Forward(lookupCtx, name)
	if err != nil {
		return model.ResolvedIdentity{}, &ResolutionError{Kind: classify(err), Input: name, Err: err}
	}
	if addr == (common.Address{}) {
		return model.ResolvedIdentity{}, &ResolutionError{Kind: NameNotFound, Input: name}
	}

	logrus.WithFields(logrus.Fields{
		"name":    name,
		"address": addr.Hex(),
	}).Debug("Resolved ENS name")

	return model.ResolvedIdentity{
		Address:      addr,
		Name:         name,
		DisplayLabel: name,
	}, nil
}

// reverse looks up the primary name of a raw address. It never fails.
func (r *Resolver) reverse(ctx context.Context, raw string) model.ResolvedIdentity {
	addr := common.HexToAddress(raw)
	id := model.ResolvedIdentity{
		Address:      addr,
		DisplayLabel: Truncate(addr.Hex()),
	}

	lookupCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	name, err := r.names.Reverse(lookupCtx, addr)
	switch {
	case err == nil && name != "":
		id.Name = name
		id.DisplayLabel = name
	case err != nil && !errors.Is(err, ens.ErrNotFound):
		logrus.WithError(err).WithField("address", addr.Hex()).Warn("Reverse lookup failed, using truncated address")
	default:
		logrus.WithField("address", addr.Hex()).Debug("No primary name for address")
	}

	return id
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// classify maps a name service error to a resolution kind
func classify(err error) Kind {
	switch {
	case errors.Is(err, ens.ErrNotFound):
		return NameNotFound
	case errors.Is(err, ens.ErrInvalidName):
		return InvalidFormat
	default:
		return ProviderUnavailable
	}
}

// IsName reports whether input has the ENS name shape
func IsName(input string) bool {
	return len(input) > len(NameSuffix) && strings.HasSuffix(strings.ToLower(input), NameSuffix)
}

// IsAddress reports whether input is a 0x-prefixed 20-byte hex address
func IsAddress(input string) bool {
	if len(input) != AddressLength {
		return false
	}
	if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") {
		return false
	}
	return common.IsHexAddress(input)
}

// Truncate shortens an address to its first and last characters, e.g. 0x1234...7890
func Truncate(addr string) string {
	if len(addr) <= TruncatePrefix+TruncateSuffix {
		return addr
	}
	return addr[:TruncatePrefix] + Ellipsis + addr[len(addr)-TruncateSuffix:]
}
