package card

// Card geometry in layout units. The exported footprint is CardWidth x CardHeight.
const (
	CardWidth  = 354
	CardHeight = 551

	FrameWidth  = 4
	OuterRadius = 29
	InnerRadius = 25

	AvatarSize   = 247
	AvatarRadius = 8

	AddressLineHeight   = 16
	VolumeLineHeight    = 37
	StatLabelLineHeight = 18
	StatValueLineHeight = 26
	StatRowHeight       = StatLabelLineHeight + StatValueLineHeight
	StatColumnGap       = 50

	// AddressShift is how far the blocks below the address line move down when it is shown
	AddressShift = 15
)

// Top offsets of each block when the address line is hidden
const (
	avatarTop    = 60
	volumeTop    = 320
	statsRow1Top = 372
	statsRow2Top = 451
)

// Top offsets that only apply when the address line is shown
const (
	avatarTopWithAddress = 50
	addressTop           = 300
)

// Block is a full-width horizontal band of the card
type Block struct {
	Top    float64
	Height float64
}

// Bottom returns the first unit below the block
func (b Block) Bottom() float64 {
	return b.Top + b.Height
}

// Layout holds the vertical position of every block on the card
type Layout struct {
	Avatar    Block
	Address   Block
	Volume    Block
	StatsRow1 Block
	StatsRow2 Block

	// AddressVisible is false when the address block must not be drawn
	AddressVisible bool
}

// LayoutFor returns one of the two fixed layouts
func LayoutFor(showAddress bool) Layout {
	if !showAddress {
		return Layout{
			Avatar:    Block{Top: avatarTop, Height: AvatarSize},
			Volume:    Block{Top: volumeTop, Height: VolumeLineHeight},
			StatsRow1: Block{Top: statsRow1Top, Height: StatRowHeight},
			StatsRow2: Block{Top: statsRow2Top, Height: StatRowHeight},
		}
	}

	return Layout{
		Avatar:         Block{Top: avatarTopWithAddress, Height: AvatarSize},
		Address:        Block{Top: addressTop, Height: AddressLineHeight},
		Volume:         Block{Top: volumeTop + AddressShift, Height: VolumeLineHeight},
		StatsRow1:      Block{Top: statsRow1Top + AddressShift, Height: StatRowHeight},
		StatsRow2:      Block{Top: statsRow2Top + AddressShift, Height: StatRowHeight},
		AddressVisible: true,
	}
}

// Blocks returns the visible blocks from top to bottom
func (l Layout) Blocks() []Block {
	blocks := []Block{l.Avatar}
	if l.AddressVisible {
		blocks = append(blocks, l.Address)
	}
	return append(blocks, l.Volume, l.StatsRow1, l.StatsRow2)
}

// AvatarLeft is the horizontal offset that centers the avatar slot
func AvatarLeft() float64 {
	return (CardWidth - AvatarSize) / 2.0
}
