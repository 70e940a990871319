package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "solarscope"

	analysesTotal     = "analyses_total"
	roiEstimatesTotal = "roi_estimates_total"
	estimatedAreaM2   = "estimated_area_m2"

	// Labels
	resultLabel = "result"

	ResultOK            = "ok"
	ResultDecodeError   = "decode_error"
	ResultInvalidImage  = "invalid_image"
	ResultInvalidParams = "invalid_parameter"
	ResultBadRequest    = "bad_request"
	ResultTooLarge      = "too_large"
	ResultError         = "error"
)

// Registry bundles the domain collectors so tests can use a private registry.
type Registry struct {
	analyses     *prometheus.CounterVec
	roiEstimates *prometheus.CounterVec
	area         prometheus.Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      analysesTotal,
				Help:      "number of rooftop analyses partitioned by result",
			},
			[]string{resultLabel},
		),
		roiEstimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      roiEstimatesTotal,
				Help:      "number of ROI estimates partitioned by result",
			},
			[]string{resultLabel},
		),
		area: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      estimatedAreaM2,
				Help:      "distribution of estimated usable rooftop area in square meters",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}
}

// Collectors returns every domain collector.
func (r *Registry) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.analyses, r.roiEstimates, r.area}
}

func (r *Registry) ObserveAnalysis(result string, areaM2 float64) {
	r.analyses.With(prometheus.Labels{resultLabel: result}).Inc()
	if result == ResultOK {
		r.area.Observe(areaM2)
	}
}

func (r *Registry) ObserveROI(result string) {
	r.roiEstimates.With(prometheus.Labels{resultLabel: result}).Inc()
}

// MustRegister registers the domain collectors to reg.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.Collectors()...)
}
