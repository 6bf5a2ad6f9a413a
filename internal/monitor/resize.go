package monitor

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize scales img to exactly size. Frames already at size are returned as is.
func Resize(img image.Image, size image.Point) image.Image {
	if img == nil || img.Bounds().Size() == size {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
