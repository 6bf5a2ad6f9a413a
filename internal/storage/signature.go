// Package storage keeps a history of analysis cycles.
package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // frame artifacts are JPEG
)

// SignatureDims is the length of a frame signature: mean RGB of each quadrant
const SignatureDims = 12

// FrameSignature decodes an encoded frame and summarizes it as the mean
// colour of its four quadrants, normalized to 0..1.
func FrameSignature(data []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return Signature(img), nil
}

// Signature summarizes img as the mean colour of its four quadrants
func Signature(img image.Image) []float32 {
	b := img.Bounds()
	midX := b.Min.X + b.Dx()/2
	midY := b.Min.Y + b.Dy()/2
	quadrants := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, midX, midY),
		image.Rect(midX, b.Min.Y, b.Max.X, midY),
		image.Rect(b.Min.X, midY, midX, b.Max.Y),
		image.Rect(midX, midY, b.Max.X, b.Max.Y),
	}

	sig := make([]float32, 0, SignatureDims)
	for _, q := range quadrants {
		var r, g, bl, n uint64
		// Every other pixel is plenty for a coarse signature
		for y := q.Min.Y; y < q.Max.Y; y += 2 {
			for x := q.Min.X; x < q.Max.X; x += 2 {
				pr, pg, pb, _ := img.At(x, y).RGBA()
				r += uint64(pr)
				g += uint64(pg)
				bl += uint64(pb)
				n++
			}
		}
		if n == 0 {
			sig = append(sig, 0, 0, 0)
			continue
		}
		sig = append(sig,
			float32(float64(r)/float64(n)/0xffff),
			float32(float64(g)/float64(n)/0xffff),
			float32(float64(bl)/float64(n)/0xffff),
		)
	}
	return sig
}
