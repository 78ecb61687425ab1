// Package card derives the visual and data model of a peer card.
//
// Build is pure: the same inputs always produce an equal Model. The
// high-volume variant is computed from the volume alone and drives the frame,
// the volume fill and the glow together.
package card

import (
	"image"
	"image/color"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/zkp2p/peercard/internal/model"
)

// HighVolumeThreshold is the USD volume from which a card gets the high-volume variant
const HighVolumeThreshold = 100000

var highVolumeThreshold = decimal.NewFromInt(HighVolumeThreshold)

// Stat labels
const (
	LabelVolume   = "VOLUME"
	LabelProfit   = "PROFIT"
	LabelDeposits = "DEPOSITS"
	LabelCurrency = "CURRENCY"
	LabelPlatform = "PLATFORM"
)

// IsHighVolume reports whether volume reaches HighVolumeThreshold
func IsHighVolume(volume decimal.Decimal) bool {
	return volume.GreaterThanOrEqual(highVolumeThreshold)
}

// Stat is one labelled value in a stats row
type Stat struct {
	Label string
	Value string
	Color color.NRGBA
}

// Model is the complete description of a card. It can only be created by Build.
type Model struct {
	identity    model.ResolvedIdentity
	stats       model.StatsRecord
	avatar      image.Image
	showAddress bool

	highVolume bool
	layout     Layout
	style      Style
	volumeText string
	statRows   [2][2]Stat
}

// Build derives the card model. A nil avatar leaves the avatar slot empty.
func Build(identity model.ResolvedIdentity, stats model.StatsRecord, avatar image.Image, showAddress bool) Model {
	highVolume := IsHighVolume(stats.Volume)

	return Model{
		identity:    identity,
		stats:       stats,
		avatar:      avatar,
		showAddress: showAddress,
		highVolume:  highVolume,
		layout:      LayoutFor(showAddress),
		style:       styleFor(highVolume),
		volumeText:  FormatUSD(stats.Volume),
		statRows: [2][2]Stat{
			{
				{Label: LabelProfit, Value: FormatUSD(stats.Profit), Color: ColorText},
				{Label: LabelDeposits, Value: strconv.FormatInt(stats.Deposits, 10), Color: ColorText},
			},
			{
				{Label: LabelCurrency, Value: stats.Currency, Color: ColorText},
				{Label: LabelPlatform, Value: stats.Platform, Color: ColorTextDim},
			},
		},
	}
}

// Identity returns the resolved identity the card was built for
func (m Model) Identity() model.ResolvedIdentity { return m.identity }

// Stats returns the stats record shown on the card
func (m Model) Stats() model.StatsRecord { return m.stats }

// Avatar returns the profile picture, nil when the slot stays empty
func (m Model) Avatar() image.Image { return m.avatar }

// ShowAddress reports whether the address line is part of the card
func (m Model) ShowAddress() bool { return m.showAddress }

// HighVolume reports whether the high-volume variant applies
func (m Model) HighVolume() bool { return m.highVolume }

// Layout returns the block positions
func (m Model) Layout() Layout { return m.layout }

// Style returns the variant styling
func (m Model) Style() Style { return m.style }

// AddressLine is the text of the address line, empty when hidden
func (m Model) AddressLine() string {
	if !m.showAddress {
		return ""
	}
	return m.identity.DisplayLabel
}

// VolumeText is the formatted volume amount
func (m Model) VolumeText() string { return m.volumeText }

// StatRows returns the two rows of two stats below the volume line
func (m Model) StatRows() [2][2]Stat { return m.statRows }

// ShareIntent returns the share URL for the card's volume
func (m Model) ShareIntent() string {
	return ShareIntent(m.stats.Volume)
}
