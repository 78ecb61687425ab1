// Package model defines the core data structures for peercard.
package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ResolvedIdentity is the outcome of resolving user input to an account.
// It is built once per generation request and never modified afterwards.
type ResolvedIdentity struct {
	// Address is the canonical account, never zero after a successful resolution
	Address common.Address `json:"address"`

	// Name is the ENS name bound to the address, empty when there is none
	Name string `json:"name,omitempty"`

	// DisplayLabel is what the card shows: Name when present, else the truncated address
	DisplayLabel string `json:"display_label"`
}

// HasName reports whether an ENS name is bound to the identity.
func (id ResolvedIdentity) HasName() bool {
	return id.Name != ""
}

// StatsRecord holds maker trading statistics as returned by the stats provider.
// All numeric fields are non-negative.
type StatsRecord struct {
	// Volume is the total filled volume in USD
	Volume decimal.Decimal `json:"volume"`

	// Profit is the realized maker profit in USD
	Profit decimal.Decimal `json:"profit"`

	// Deposits is the number of deposits the maker opened
	Deposits int64 `json:"deposits"`

	// Currency is a display-only label, distinct from the formatting currency
	Currency string `json:"currency"`

	// Platform names the payment platform the maker uses most
	Platform string `json:"platform"`
}
