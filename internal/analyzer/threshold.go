package analyzer

import (
	"fmt"
	"image"
	"image/color"
)

const (
	// DefaultThreshold is the grayscale level (0-255) a pixel must exceed to count as usable roof.
	DefaultThreshold uint8 = 180
	// DefaultScaleDivisor converts bright pixels to square meters. It stands in for an
	// unknown ground sampling distance and is a placeholder calibration.
	DefaultScaleDivisor = 10000.0
)

// Compile-time assertions for the interfaces ThresholdEstimator implements.
var (
	_ AreaEstimator = (*ThresholdEstimator)(nil)
	_ Masker        = (*ThresholdEstimator)(nil)
)

// ThresholdEstimator treats every pixel brighter than Threshold as unshaded, usable roof surface.
type ThresholdEstimator struct {
	Threshold    uint8   // Strictly-greater-than cut-off on the 0-255 luminance scale
	ScaleDivisor float64 // Pixels per square meter
}

// NewThresholdEstimator creates a new threshold estimator with default settings
func NewThresholdEstimator() *ThresholdEstimator {
	return &ThresholdEstimator{
		Threshold:    DefaultThreshold,
		ScaleDivisor: DefaultScaleDivisor,
	}
}

// Estimate counts bright pixels and scales the usable fraction to square meters.
// The input image is only read.
func (e *ThresholdEstimator) Estimate(img image.Image) (Result, error) {
	if img == nil {
		return Result{}, NewInvalidImageError("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return Result{}, NewInvalidImageError("image has no pixels: %dx%d", bounds.Dx(), bounds.Dy())
	}
	if e.ScaleDivisor <= 0 {
		return Result{}, fmt.Errorf("misconfigured estimator: scale divisor must be > 0, got %v", e.ScaleDivisor)
	}

	gray := toGrayscale(img)

	bright := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > e.Threshold {
				bright++
			}
		}
	}

	total := bounds.Dx() * bounds.Dy()
	ratio := float64(bright) / float64(total)

	return Result{
		BrightPixels: bright,
		TotalPixels:  total,
		UsableRatio:  ratio,
		AreaM2:       ratio * float64(total) / e.ScaleDivisor,
	}, nil
}

// Mask returns a binary image where usable pixels are white and everything else black
func (e *ThresholdEstimator) Mask(img image.Image) (*image.Gray, error) {
	if img == nil {
		return nil, NewInvalidImageError("image is nil")
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, NewInvalidImageError("image has no pixels: %dx%d", bounds.Dx(), bounds.Dy())
	}

	gray := toGrayscale(img)
	mask := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > e.Threshold {
				mask.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return mask, nil
}

// toGrayscale converts an image to grayscale using ITU-R 601 luminance weights.
// Images that are already grayscale are returned as is.
func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}

	return gray
}
