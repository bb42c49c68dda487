package pdfpages

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"scriptsync/internal/fileutil"
)

// Rotate turns img counter-clockwise by degrees, which must be a multiple of 90.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	turns := ((degrees % 360) + 360) % 360
	if turns%90 != 0 {
		return nil, fmt.Errorf("rotation %d is not a quarter turn", degrees)
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	var dst *image.RGBA
	var m f64.Aff3
	switch turns {
	case 0:
		return img, nil
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		m = f64.Aff3{0, 1, -float64(b.Min.Y), -1, 0, w + float64(b.Min.X)}
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		m = f64.Aff3{-1, 0, w + float64(b.Min.X), 0, -1, h + float64(b.Min.Y)}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		m = f64.Aff3{0, -1, h + float64(b.Min.Y), 1, 0, -float64(b.Min.X)}
	}
	draw.NearestNeighbor.Transform(dst, m, img, b, draw.Src, nil)
	return dst, nil
}

// RotateFile rotates the PNG at path in place.
func RotateFile(path string, degrees int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, err := png.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	rotated, err := Rotate(img, degrees)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rotated); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
