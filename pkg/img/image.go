// Package img holds the RGBA raster produced by shading and its
// post-processors.
//
// # Overview
//
// An [Image] is a dense RGBA pixel array plus the grid geometry it was
// rendered from, so an embedding layer can place it on a coordinate-aware
// canvas. The package provides the pixel-level post-processing steps that
// run after colormapping:
//
//   - [Image.Spread]: dilate non-transparent pixels by a shape stencil
//   - [Image.DynSpread]: pick the spread radius from pixel density
//   - [Stack]: composite several images with a Porter-Duff operator
//   - [Image.EncodePNG]: write the pixels as a PNG
//
// # Pixel layout
//
// Pixels are stored row-major with straight (non-premultiplied) alpha,
// four bytes per pixel. Row 0 corresponds to the grid's y-minimum edge;
// [Image.RGBA] flips rows into the top-down order image viewers expect.
package img

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/tyrasd/datashader/pkg/errors"
	"github.com/tyrasd/datashader/pkg/grid"
)

// Image is a dense RGBA raster with the geometry it was rendered from.
type Image struct {
	Geom grid.Geometry

	// Pix holds 4 bytes per pixel in R, G, B, A order, row-major with
	// row 0 at the grid's y minimum.
	Pix []uint8
}

// New returns a fully transparent image covering geom.
func New(geom grid.Geometry) *Image {
	return &Image{
		Geom: geom,
		Pix:  make([]uint8, 4*geom.Width*geom.Height),
	}
}

// At returns the pixel at (row, col).
func (im *Image) At(row, col int) color.RGBA {
	i := 4 * (row*im.Geom.Width + col)
	return color.RGBA{R: im.Pix[i], G: im.Pix[i+1], B: im.Pix[i+2], A: im.Pix[i+3]}
}

// Set writes the pixel at (row, col).
func (im *Image) Set(row, col int, c color.RGBA) {
	i := 4 * (row*im.Geom.Width + col)
	im.Pix[i], im.Pix[i+1], im.Pix[i+2], im.Pix[i+3] = c.R, c.G, c.B, c.A
}

// Opaque reports whether the pixel at (row, col) has nonzero alpha.
func (im *Image) Opaque(row, col int) bool {
	return im.Pix[4*(row*im.Geom.Width+col)+3] != 0
}

// Clone returns an independent copy.
func (im *Image) Clone() *Image {
	out := &Image{Geom: im.Geom, Pix: make([]uint8, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// RGBA converts to a standard library image, flipping rows so that the
// grid's y maximum ends up at the top of the picture.
func (im *Image) RGBA() *image.RGBA {
	w, h := im.Geom.Width, im.Geom.Height
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for r := 0; r < h; r++ {
		src := im.Pix[4*r*w : 4*(r+1)*w]
		dst := out.Pix[(h-1-r)*out.Stride:]
		copy(dst, src)
	}
	return out
}

// EncodePNG writes the image as a PNG.
func (im *Image) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, im.RGBA()); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encoding PNG")
	}
	return nil
}

func sameSize(a, b *Image) bool {
	return a.Geom.Width == b.Geom.Width && a.Geom.Height == b.Geom.Height
}
