package placement

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hm-edu/remotesign/models"
)

const (
	CaptionTimeLayout = "02/01/2006 15:04"
	// pixelsPerPoint keeps the stamp readable once the viewer scales it.
	pixelsPerPoint = 4
)

// Caption returns the visible stamp text.
func Caption(prefix, signer string, at time.Time) string {
	return fmt.Sprintf("%s %s\n%s", strings.TrimSpace(prefix), signer, at.Format(CaptionTimeLayout))
}

// RenderStamp draws caption onto a white PNG sized for a width x height
// point rectangle.
func RenderStamp(caption string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidRect, width, height)
	}
	w, h := width*pixelsPerPoint, height*pixelsPerPoint
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	border := color.RGBA{R: 0x1f, G: 0x3a, B: 0x93, A: 0xff}
	for x := 0; x < w; x++ {
		img.Set(x, 0, border)
		img.Set(x, h-1, border)
	}
	for y := 0; y < h; y++ {
		img.Set(0, y, border)
		img.Set(w-1, y, border)
	}

	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()
	d := &font.Drawer{Dst: img, Src: image.NewUniform(border), Face: face}
	y := 4 + face.Metrics().Ascent.Ceil()
	for _, line := range strings.Split(caption, "\n") {
		if y > h-2 {
			break
		}
		d.Dot = fixed.P(4, y)
		d.DrawString(line)
		y += lineHeight + 2
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StampAppearance renders the stamp for rect and bundles it with the caption.
func StampAppearance(caption string, fontSize int, rect models.StampRect) (Appearance, error) {
	stamp, err := RenderStamp(caption, rect.Width(), rect.Height())
	if err != nil {
		return Appearance{}, err
	}
	return Appearance{
		Text:     caption,
		FontSize: fontSize,
		Image:    base64.StdEncoding.EncodeToString(stamp),
	}, nil
}
