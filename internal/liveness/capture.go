package liveness

import (
	"image"
	"math"

	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/MrCodeEU/LiveCheck/pkg/utils"
)

// Artifact is the captured face produced when a session succeeds
type Artifact struct {
	// Region is the padded crop in source frame pixels
	Region image.Rectangle `json:"-"`
	// JPEG holds the encoded crop; empty when the frame carried no pixels
	JPEG   []byte `json:"jpeg,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// FaceRegion computes the bounding box of all landmarks in pixel space and
// pads it by padX of its width on each side horizontally and padY of its
// height vertically. The result always lies inside the frame and is at least
// one pixel in each dimension. Coordinates outside [0, 1] are clamped first.
func FaceRegion(lm models.Landmarks, width, height int, padX, padY float64) image.Rectangle {
	width, height = max(width, 1), max(height, 1)
	if len(lm) == 0 {
		return image.Rect(0, 0, 1, 1)
	}

	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, p := range lm {
		x := int(math.Round(unit(p.X) * float64(width)))
		y := int(math.Round(unit(p.Y) * float64(height)))
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}

	px := int(math.Round(float64(maxX-minX) * padX))
	py := int(math.Round(float64(maxY-minY) * padY))

	x1 := utils.Clamp(minX-px, 0, width-1)
	y1 := utils.Clamp(minY-py, 0, height-1)
	x2 := utils.Clamp(maxX+px, 0, width)
	y2 := utils.Clamp(maxY+py, 0, height)

	// Collapsed boxes still yield a 1x1 crop
	if x2 <= x1 {
		x2 = x1 + 1
	}
	if y2 <= y1 {
		y2 = y1 + 1
	}

	return image.Rect(x1, y1, x2, y2)
}

// unit limits a normalized coordinate to [0, 1]; NaN maps to 0
func unit(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	return math.Min(v, 1)
}

// Finalize crops the face out of the final frame and encodes it. When the
// frame carries pixels the region is computed in the image's own size.
func Finalize(lm models.Landmarks, meta FrameMeta, p Params) (*Artifact, error) {
	width, height := meta.Width, meta.Height
	if meta.Image != nil {
		b := meta.Image.Bounds()
		width, height = b.Dx(), b.Dy()
	}

	region := FaceRegion(lm, width, height, p.PadX, p.PadY)
	artifact := &Artifact{
		Region: region,
		Width:  region.Dx(),
		Height: region.Dy(),
	}

	if meta.Image == nil {
		return artifact, nil
	}

	quality := p.JPEGQuality
	if quality <= 0 {
		quality = 92
	}

	crop := utils.CropImage(meta.Image, region.Add(meta.Image.Bounds().Min))
	data, err := utils.EncodeJPEG(crop, quality)
	if err != nil {
		return artifact, err
	}
	artifact.JPEG = data

	return artifact, nil
}
