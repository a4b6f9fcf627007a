// Package leaf decides whether an uploaded photo plausibly shows a plant leaf
// using color and texture statistics only. It never calls out of process.
package leaf

import (
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for image.Decode
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxEdge caps the longest side of a bitmap before scoring.
const DefaultMaxEdge = 800

// Bitmap is a packed 8-bit RGB raster, row-major, three bytes per pixel.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

// Len returns the number of pixels.
func (b *Bitmap) Len() int {
	return b.Width * b.Height
}

// RGB returns the channels of pixel i.
func (b *Bitmap) RGB(i int) (r, g, bl uint8) {
	o := i * 3
	return b.Pix[o], b.Pix[o+1], b.Pix[o+2]
}

// Load reads and decodes the image stored at path.
func Load(path string, maxEdge int) (*Bitmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, maxEdge)
}

// Decode decodes a jpeg, png or webp stream and downscales it so the longest
// edge does not exceed maxEdge. maxEdge <= 0 disables downscaling.
func Decode(r io.Reader, maxEdge int) (*Bitmap, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img, maxEdge), nil
}

// FromImage converts img into a Bitmap, downscaling with bilinear
// interpolation when its longest edge exceeds maxEdge.
func FromImage(img image.Image, maxEdge int) *Bitmap {
	src := img.Bounds()
	w, h := ScaledSize(src.Dx(), src.Dy(), maxEdge)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	}

	bm := &Bitmap{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	for i, j := 0, 0; i < len(dst.Pix); i, j = i+4, j+3 {
		bm.Pix[j] = dst.Pix[i]
		bm.Pix[j+1] = dst.Pix[i+1]
		bm.Pix[j+2] = dst.Pix[i+2]
	}
	return bm
}

// ScaledSize returns the dimensions after capping the longest edge at maxEdge
// while preserving the aspect ratio. Dimensions never drop below one.
func ScaledSize(w, h, maxEdge int) (int, int) {
	longest := max(w, h)
	if maxEdge <= 0 || longest <= maxEdge {
		return w, h
	}
	scale := float64(maxEdge) / float64(longest)
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)
	return nw, nh
}
