// Package utils provides utility functions for image processing
package utils

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// CropImage copies a region of an image into a new RGBA image whose origin is
// at (0,0). The region is clamped to the image bounds.
func CropImage(img image.Image, region image.Rectangle) *image.RGBA {
	region = region.Intersect(img.Bounds())
	width, height := region.Dx(), region.Dy()

	cropped := image.NewRGBA(image.Rect(0, 0, width, height))

	for j := 0; j < height; j++ {
		for i := 0; i < width; i++ {
			r, g, b, a := img.At(region.Min.X+i, region.Min.Y+j).RGBA()
			cropped.SetRGBA(i, j, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)})
		}
	}

	return cropped
}

// EncodeJPEG encodes an image as JPEG at the given quality
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Clamp clamps a value between min and max
func Clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
