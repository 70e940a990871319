package analyzer

import "fmt"

// NewEstimator creates an estimator based on the specified variant
func NewEstimator(variant string) (AreaEstimator, error) {
	switch variant {
	case "threshold", "":
		return NewThresholdEstimator(), nil
	case "segmentation":
		return nil, fmt.Errorf("segmentation estimator not yet implemented")
	default:
		return nil, fmt.Errorf("unknown estimator variant: %s", variant)
	}
}
