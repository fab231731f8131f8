package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	badgePadding = 6
	badgeScale   = 2
)

// renderBadge draws text on a translucent plate and returns it as PNG. The
// output depends only on text.
func renderBadge(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("badge: empty text")
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2*badgePadding
	height := face.Metrics().Height.Ceil() + 2*badgePadding

	plate := imaging.New(width, height, color.NRGBA{R: 0, G: 0, B: 0, A: 140})
	drawer := &font.Drawer{
		Dst:  plate,
		Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 230}),
		Face: face,
		Dot:  fixed.P(badgePadding, badgePadding+face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)

	scaled := imaging.Resize(plate, width*badgeScale, 0, imaging.NearestNeighbor)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, scaled, imaging.PNG); err != nil {
		return nil, fmt.Errorf("badge: encode: %w", err)
	}
	return buf.Bytes(), nil
}
