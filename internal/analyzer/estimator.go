package analyzer

import "image"

// Result is the outcome of a single area estimation.
type Result struct {
	BrightPixels int     `json:"bright_pixels" yaml:"bright_pixels"`
	TotalPixels  int     `json:"total_pixels" yaml:"total_pixels"`
	UsableRatio  float64 `json:"usable_ratio" yaml:"usable_ratio"` // 0.0-1.0
	AreaM2       float64 `json:"area_m2" yaml:"area_m2"`
}

// AreaEstimator is the interface for rooftop area estimation strategies
type AreaEstimator interface {
	Estimate(img image.Image) (Result, error)
}

// Masker is implemented by estimators that can show which pixels they counted.
type Masker interface {
	Mask(img image.Image) (*image.Gray, error)
}
