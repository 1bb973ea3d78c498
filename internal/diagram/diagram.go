// Package diagram renders the model's layer stack as a PNG for the
// /model-architecture endpoint.
package diagram

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	boxWidth   = 280
	boxHeight  = 34
	boxGap     = 14
	marginX    = 40
	marginY    = 30
	arrowWidth = 2
)

var (
	bgColor     = color.RGBA{13, 17, 23, 255}
	boxColor    = color.RGBA{33, 48, 66, 255}
	borderColor = color.RGBA{88, 166, 255, 255}
	textColor   = color.RGBA{201, 209, 217, 255}
)

// RenderPNG draws one labeled box per layer, top to bottom, connected by
// arrows, and writes the result as PNG.
func RenderPNG(w io.Writer, layers []string) error {
	height := 2*marginY + len(layers)*boxHeight + (len(layers)-1)*boxGap
	width := 2*marginX + boxWidth
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(bgColor), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for i, label := range layers {
		top := marginY + i*(boxHeight+boxGap)
		box := image.Rect(marginX, top, marginX+boxWidth, top+boxHeight)
		draw.Draw(img, box, image.NewUniform(boxColor), image.Point{}, draw.Src)
		strokeRect(img, box, borderColor)

		d := font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(textColor),
			Face: face,
		}
		tw := d.MeasureString(label).Ceil()
		d.Dot = fixed.P(marginX+(boxWidth-tw)/2, top+boxHeight/2+face.Ascent/2)
		d.DrawString(label)

		if i < len(layers)-1 {
			cx := width / 2
			for y := top + boxHeight; y < top+boxHeight+boxGap; y++ {
				for dx := 0; dx < arrowWidth; dx++ {
					img.Set(cx+dx, y, borderColor)
				}
			}
		}
	}
	return png.Encode(w, img)
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}
