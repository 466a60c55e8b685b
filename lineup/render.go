/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	FieldWidth  = 400
	FieldHeight = 600

	markerRadius = 14
	stripeHeight = 60
)

var (
	grassLight  = color.RGBA{R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}
	grassDark   = color.RGBA{R: 0x43, G: 0xa0, B: 0x47, A: 0xff}
	chalk       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	openMarker  = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}
	takenMarker = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink         = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
)

// RenderOptions controls the exported image.
type RenderOptions struct {
	Title   string
	Quality int
}

// Render draws the field with every position and its occupant and writes it
// to w as a JPEG.
func Render(w io.Writer, catalog *Catalog, a Assignments, opts RenderOptions) error {
	if catalog == nil {
		return errors.New("render: nil catalog")
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	img := image.NewRGBA(image.Rect(0, 0, FieldWidth, FieldHeight))

	drawPitch(img)

	if opts.Title != "" {
		drawLabel(img, opts.Title, FieldWidth/2, 20, chalk)
	}

	for _, pos := range catalog.Positions {
		x := int(pos.Left / 100 * FieldWidth)
		y := int(pos.Top / 100 * FieldHeight)

		player := a[pos.ID]
		if player == "" {
			fillCircle(img, x, y, markerRadius, openMarker)
			drawLabel(img, pos.Label, x, y+markerRadius+14, ink)
			continue
		}

		fillCircle(img, x, y, markerRadius, takenMarker)
		drawLabel(img, pos.Label, x, y+4, ink)
		drawLabel(img, string(player), x, y+markerRadius+14, ink)
	}

	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("render: encode: %w", err)
	}
	return nil
}

func drawPitch(img *image.RGBA) {
	for y := 0; y < FieldHeight; y += stripeHeight {
		c := grassLight
		if (y/stripeHeight)%2 == 1 {
			c = grassDark
		}
		draw.Draw(img, image.Rect(0, y, FieldWidth, y+stripeHeight), &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	const margin = 10
	strokeRect(img, image.Rect(margin, margin, FieldWidth-margin, FieldHeight-margin))
	hLine(img, margin, FieldWidth-margin, FieldHeight/2)
	strokeCircle(img, FieldWidth/2, FieldHeight/2, 50)

	// penalty and goal areas
	strokeRect(img, image.Rect(80, margin, FieldWidth-80, margin+90))
	strokeRect(img, image.Rect(140, margin, FieldWidth-140, margin+30))
	strokeRect(img, image.Rect(80, FieldHeight-margin-90, FieldWidth-80, FieldHeight-margin))
	strokeRect(img, image.Rect(140, FieldHeight-margin-30, FieldWidth-140, FieldHeight-margin))
}

func hLine(img *image.RGBA, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, chalk)
		img.Set(x, y+1, chalk)
	}
}

func vLine(img *image.RGBA, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, chalk)
		img.Set(x+1, y, chalk)
	}
}

func strokeRect(img *image.RGBA, r image.Rectangle) {
	hLine(img, r.Min.X, r.Max.X, r.Min.Y)
	hLine(img, r.Min.X, r.Max.X, r.Max.Y-1)
	vLine(img, r.Min.X, r.Min.Y, r.Max.Y)
	vLine(img, r.Max.X-1, r.Min.Y, r.Max.Y)
}

func strokeCircle(img *image.RGBA, cx, cy, r int) {
	inner, outer := (r-1)*(r-1), (r+1)*(r+1)
	for y := -r - 1; y <= r+1; y++ {
		for x := -r - 1; x <= r+1; x++ {
			if d := x*x + y*y; d >= inner && d <= outer {
				img.Set(cx+x, cy+y, chalk)
			}
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.Color) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.Set(cx+x, cy+y, c)
			}
		}
	}
}

// drawLabel centers s horizontally on x with its baseline at y, clamped to
// stay inside the image.
func drawLabel(img *image.RGBA, s string, x, y int, c color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()

	left := min(max(x-width/2, 2), FieldWidth-width-2)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(left, y),
	}
	d.DrawString(s)
}
