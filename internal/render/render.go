// Package render rasterizes card models and exports them as PNG.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/opentype"

	"github.com/zkp2p/peercard/internal/card"
)

const (
	// ExportPixelRatio is the density of exported images
	ExportPixelRatio = 2

	// DefaultFilename is used by ExportFile when no path is given
	DefaultFilename = "peer-card.png"
)

// Font sizes in layout units
const (
	addressFontSize = 12
	volumeFontSize  = 28
	labelFontSize   = 14
	valueFontSize   = 20
)

// ErrInvalidPixelRatio is returned for non-positive or non-finite densities
var ErrInvalidPixelRatio = errors.New("invalid pixel ratio")

// Renderer draws card models. It is safe for concurrent use.
type Renderer struct {
	font *opentype.Font
}

// NewRenderer parses the card typeface
func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(gomedium.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse card font: %w", err)
	}
	return &Renderer{font: f}, nil
}

// Render draws m inside the fixed card footprint scaled by pixelRatio
func (r *Renderer) Render(m card.Model, pixelRatio float64) (image.Image, error) {
	if pixelRatio <= 0 || math.IsInf(pixelRatio, 0) || math.IsNaN(pixelRatio) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPixelRatio, pixelRatio)
	}

	start := time.Now()
	c, err := r.newCanvas(pixelRatio)
	if err != nil {
		return nil, err
	}
	defer c.close()

	style := m.Style()
	layout := m.Layout()

	c.fillRounded(card.FrameWidth, card.FrameWidth,
		card.CardWidth-2*card.FrameWidth, card.CardHeight-2*card.FrameWidth,
		card.InnerRadius, card.ColorBlack)
	if style.Glow.Enabled() {
		c.drawGlow(style.Glow)
	}
	c.drawFrame(style.Frame)

	c.drawAvatar(layout.Avatar, m.Avatar())

	if layout.AddressVisible {
		c.drawCentered(m.AddressLine(), c.faces.address, card.ColorAddress, card.CardWidth/2, layout.Address)
	}

	if err := c.drawVolume(m.VolumeText(), style.VolumeFill, layout.Volume); err != nil {
		return nil, err
	}

	rows := m.StatRows()
	c.drawStatRow(rows[0], layout.StatsRow1)
	c.drawStatRow(rows[1], layout.StatsRow2)

	logrus.WithFields(logrus.Fields{
		"pixel_ratio": pixelRatio,
		"high_volume": m.HighVolume(),
		"duration":    time.Since(start),
	}).Debug("Card rendered")

	return c.dc.Image(), nil
}

// Export encodes m as PNG at ExportPixelRatio
func (r *Renderer) Export(w io.Writer, m card.Model) error {
	img, err := r.Render(m, ExportPixelRatio)
	if err != nil {
		return fmt.Errorf("failed to render card: %w", err)
	}
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode card: %w", err)
	}
	return nil
}

// ExportFile writes the PNG to path, or DefaultFilename when path is empty
func (r *Renderer) ExportFile(path string, m card.Model) (string, error) {
	if path == "" {
		path = DefaultFilename
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := r.Export(f, m); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

type faceSet struct {
	address font.Face
	volume  font.Face
	label   font.Face
	value   font.Face
}

// canvas converts layout units to pixels
type canvas struct {
	dc     *gg.Context
	ratio  float64
	width  int
	height int
	faces  faceSet
}

func (r *Renderer) newCanvas(ratio float64) (*canvas, error) {
	c := &canvas{
		ratio:  ratio,
		width:  int(math.Round(card.CardWidth * ratio)),
		height: int(math.Round(card.CardHeight * ratio)),
	}
	c.dc = gg.NewContext(c.width, c.height)

	var err error
	for _, f := range []struct {
		dst  *font.Face
		size float64
	}{
		{&c.faces.address, addressFontSize},
		{&c.faces.volume, volumeFontSize},
		{&c.faces.label, labelFontSize},
		{&c.faces.value, valueFontSize},
	} {
		*f.dst, err = opentype.NewFace(r.font, &opentype.FaceOptions{
			Size:    f.size * ratio,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			c.close()
			return nil, fmt.Errorf("failed to create font face: %w", err)
		}
	}
	return c, nil
}

func (c *canvas) close() {
	for _, f := range []font.Face{c.faces.address, c.faces.volume, c.faces.label, c.faces.value} {
		if f != nil {
			f.Close()
		}
	}
}

func (c *canvas) px(v float64) float64 {
	return v * c.ratio
}

func (c *canvas) fillRounded(x, y, w, h, radius float64, col color.Color) {
	c.dc.DrawRoundedRectangle(c.px(x), c.px(y), c.px(w), c.px(h), c.px(radius))
	c.dc.SetColor(col)
	c.dc.Fill()
}

// ringPath adds the frame ring as two rounded rectangles; fill it even-odd
func (c *canvas) ringPath(dc *gg.Context) {
	dc.DrawRoundedRectangle(0, 0, c.px(card.CardWidth), c.px(card.CardHeight), c.px(card.OuterRadius))
	dc.DrawRoundedRectangle(c.px(card.FrameWidth), c.px(card.FrameWidth),
		c.px(card.CardWidth-2*card.FrameWidth), c.px(card.CardHeight-2*card.FrameWidth),
		c.px(card.InnerRadius))
}

func (c *canvas) verticalGradient(g card.Gradient, top, bottom float64) gg.Pattern {
	if g.Flat() {
		return gg.NewSolidPattern(g.From)
	}
	grad := gg.NewLinearGradient(0, c.px(top), 0, c.px(bottom))
	grad.AddColorStop(0, g.From)
	grad.AddColorStop(1, g.To)
	return grad
}

func (c *canvas) drawFrame(g card.Gradient) {
	c.ringPath(c.dc)
	c.dc.SetFillRule(gg.FillRuleEvenOdd)
	c.dc.SetFillStyle(c.verticalGradient(g, 0, card.CardHeight))
	c.dc.Fill()
	c.dc.SetFillRule(gg.FillRuleWinding)
}

// drawGlow composites a blurred copy of the ring over the inner area so it
// sits under the ring itself
func (c *canvas) drawGlow(g card.Glow) {
	glow := gg.NewContext(c.width, c.height)
	c.ringPath(glow)
	glow.SetFillRule(gg.FillRuleEvenOdd)
	glow.SetColor(g.Color)
	glow.Fill()

	blurred := imaging.Blur(glow.Image(), c.px(g.Radius)/2)

	c.dc.DrawRoundedRectangle(c.px(card.FrameWidth), c.px(card.FrameWidth),
		c.px(card.CardWidth-2*card.FrameWidth), c.px(card.CardHeight-2*card.FrameWidth),
		c.px(card.InnerRadius))
	c.dc.Clip()
	c.dc.DrawImage(blurred, 0, 0)
	c.dc.ResetClip()
}

func (c *canvas) drawAvatar(slot card.Block, avatar image.Image) {
	left := card.AvatarLeft()
	c.fillRounded(left, slot.Top, card.AvatarSize, slot.Height, card.AvatarRadius, card.ColorAvatarSlot)
	if avatar == nil {
		return
	}

	size := int(math.Round(c.px(card.AvatarSize)))
	fitted := imaging.Fill(avatar, size, size, imaging.Center, imaging.Lanczos)

	c.dc.DrawRoundedRectangle(c.px(left), c.px(slot.Top), c.px(card.AvatarSize), c.px(slot.Height), c.px(card.AvatarRadius))
	c.dc.Clip()
	c.dc.DrawImage(fitted, int(math.Round(c.px(left))), int(math.Round(c.px(slot.Top))))
	c.dc.ResetClip()
}

// baseline returns the pixel baseline that vertically centers face in the block
func (c *canvas) baseline(face font.Face, b card.Block) float64 {
	m := face.Metrics()
	center := c.px(b.Top + b.Height/2)
	return center + float64(m.Ascent-m.Descent)/64/2
}

// drawCentered draws s horizontally centered on cx (layout units)
func (c *canvas) drawCentered(s string, face font.Face, col color.Color, cx float64, b card.Block) {
	c.dc.SetFontFace(face)
	c.dc.SetColor(col)
	c.dc.DrawStringAnchored(s, c.px(cx), c.baseline(face, b), 0.5, 0)
}

func (c *canvas) measure(s string, face font.Face) float64 {
	c.dc.SetFontFace(face)
	w, _ := c.dc.MeasureString(s)
	return w
}

// drawVolume draws the label in the text color and the amount through a text
// mask so the volume fill can be a gradient
func (c *canvas) drawVolume(amount string, fill card.Gradient, b card.Block) error {
	label := card.LabelVolume + " "
	face := c.faces.volume
	labelWidth := c.measure(label, face)
	amountWidth := c.measure(amount, face)

	x := (float64(c.width) - labelWidth - amountWidth) / 2
	y := c.baseline(face, b)

	c.dc.SetFontFace(face)
	c.dc.SetColor(card.ColorText)
	c.dc.DrawStringAnchored(label, x, y, 0, 0)

	text := gg.NewContext(c.width, c.height)
	text.SetFontFace(face)
	text.SetColor(color.White)
	text.DrawStringAnchored(amount, x+labelWidth, y, 0, 0)

	if err := c.dc.SetMask(text.AsMask()); err != nil {
		return fmt.Errorf("failed to apply volume mask: %w", err)
	}
	c.dc.DrawRectangle(0, c.px(b.Top), float64(c.width), c.px(b.Height))
	c.dc.SetFillStyle(c.verticalGradient(fill, b.Top, b.Bottom()))
	c.dc.Fill()
	c.dc.ResetClip()
	return nil
}

// drawStatRow draws two label/value columns centered with StatColumnGap between them
func (c *canvas) drawStatRow(row [2]card.Stat, b card.Block) {
	var widths [2]float64
	for i, stat := range row {
		widths[i] = math.Max(c.measure(stat.Label, c.faces.label), c.measure(stat.Value, c.faces.value))
	}

	gap := c.px(card.StatColumnGap)
	left := (float64(c.width) - widths[0] - gap - widths[1]) / 2
	centers := [2]float64{left + widths[0]/2, left + widths[0] + gap + widths[1]/2}

	labelBlock := card.Block{Top: b.Top, Height: card.StatLabelLineHeight}
	valueBlock := card.Block{Top: b.Top + card.StatLabelLineHeight, Height: card.StatValueLineHeight}

	for i, stat := range row {
		cx := centers[i] / c.ratio
		c.drawCentered(stat.Label, c.faces.label, card.ColorText, cx, labelBlock)
		c.drawCentered(stat.Value, c.faces.value, stat.Color, cx, valueBlock)
	}
}
