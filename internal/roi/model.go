package roi

import (
	"fmt"
	"math"
)

// Default prefix = hardcoded assumptions of the model, overridable by Options
const (
	// DefaultSunHours full-sun-equivalent hours per year (kWh produced per installed kW).
	DefaultSunHours = 1500.0
	// DefaultPricePerKWh flat electricity price, in currency units per kWh.
	DefaultPricePerKWh = 6.0
	// DefaultCostDivisor rescales kW*1000*costPerWatt into an installation cost.
	DefaultCostDivisor = 100.0
	// DefaultCostPerWatt installation cost per watt of capacity, before rescaling.
	DefaultCostPerWatt = 50.0
	// DefaultEfficiency panel efficiency, kW of capacity per square meter.
	DefaultEfficiency = 0.18
)

// Result holds the inputs of an estimation together with every derived quantity.
type Result struct {
	AreaM2          float64 `json:"area_m2" yaml:"area_m2"`
	CostPerWatt     float64 `json:"cost_per_watt" yaml:"cost_per_watt"`
	Efficiency      float64 `json:"efficiency" yaml:"efficiency"`
	KWInstalled     float64 `json:"kw_installed" yaml:"kw_installed"`
	AnnualOutputKWh float64 `json:"annual_output_kwh" yaml:"annual_output_kwh"`
	SavingsPerYear  float64 `json:"savings_per_year" yaml:"savings_per_year"`
	Cost            float64 `json:"cost" yaml:"cost"`
	// PaybackYears is +Inf when the installation saves nothing.
	PaybackYears float64 `json:"payback_years" yaml:"payback_years"`
}

// Recoverable reports whether the installation cost is ever paid back.
func (r Result) Recoverable() bool {
	return !math.IsInf(r.PaybackYears, 1)
}

// Model is the ROI formula chain with its calibration constants.
type Model struct {
	sunHours           float64
	pricePerKWh        float64
	costDivisor        float64
	defaultCostPerWatt float64
	defaultEfficiency  float64
}

// Option configuration option for the model
type Option func(*Model)

// WithSunHours sets the yearly full-sun-equivalent hours.
func WithSunHours(hours float64) Option {
	return func(m *Model) {
		m.sunHours = hours
	}
}

// WithPricePerKWh sets the electricity price used to value the yearly output.
func WithPricePerKWh(price float64) Option {
	return func(m *Model) {
		m.pricePerKWh = price
	}
}

// WithCostDivisor sets the divisor applied to the raw installation cost.
func WithCostDivisor(divisor float64) Option {
	return func(m *Model) {
		m.costDivisor = divisor
	}
}

// WithDefaultCostPerWatt sets the cost per watt used by EstimateDefault.
func WithDefaultCostPerWatt(cost float64) Option {
	return func(m *Model) {
		m.defaultCostPerWatt = cost
	}
}

// WithDefaultEfficiency sets the panel efficiency used by EstimateDefault.
func WithDefaultEfficiency(efficiency float64) Option {
	return func(m *Model) {
		m.defaultEfficiency = efficiency
	}
}

// NewModel creates a Model with default settings that can be overridden by Options
func NewModel(opts ...Option) *Model {
	m := Model{
		sunHours:           DefaultSunHours,
		pricePerKWh:        DefaultPricePerKWh,
		costDivisor:        DefaultCostDivisor,
		defaultCostPerWatt: DefaultCostPerWatt,
		defaultEfficiency:  DefaultEfficiency,
	}

	for _, opt := range opts {
		opt(&m)
	}

	return &m
}

// DefaultCostPerWatt returns the cost per watt applied when the caller gives none.
func (m *Model) DefaultCostPerWatt() float64 { return m.defaultCostPerWatt }

// DefaultEfficiency returns the efficiency applied when the caller gives none.
func (m *Model) DefaultEfficiency() float64 { return m.defaultEfficiency }

// EstimateDefault runs Estimate with the model's default cost per watt and efficiency.
func (m *Model) EstimateDefault(areaM2 float64) (Result, error) {
	return m.Estimate(areaM2, m.defaultCostPerWatt, m.defaultEfficiency)
}

// Estimate runs the formula chain for the given area (m²), cost per watt and efficiency (0,1].
func (m *Model) Estimate(areaM2, costPerWatt, efficiency float64) (Result, error) {
	if err := m.validate(areaM2, costPerWatt, efficiency); err != nil {
		return Result{}, err
	}

	kwInstalled := areaM2 * efficiency
	annualOutput := kwInstalled * m.sunHours
	savings := annualOutput * m.pricePerKWh
	cost := kwInstalled * 1000 * costPerWatt / m.costDivisor

	payback := math.Inf(1)
	if savings != 0 {
		payback = cost / savings
	}

	return Result{
		AreaM2:          areaM2,
		CostPerWatt:     costPerWatt,
		Efficiency:      efficiency,
		KWInstalled:     kwInstalled,
		AnnualOutputKWh: annualOutput,
		SavingsPerYear:  savings,
		Cost:            cost,
		PaybackYears:    payback,
	}, nil
}

// Summary is a one-line human readable description of a result.
func (r Result) Summary() string {
	payback := "not recoverable"
	if r.Recoverable() {
		payback = fmt.Sprintf("%.1f years", r.PaybackYears)
	}
	return fmt.Sprintf("%.1f m² @ %.0f%% -> %.2f kW, %.0f kWh/year, payback %s",
		r.AreaM2, r.Efficiency*100, r.KWInstalled, r.AnnualOutputKWh, payback)
}

func (m *Model) validate(areaM2, costPerWatt, efficiency float64) error {
	if !isFinite(areaM2) || areaM2 < 0 {
		return NewInvalidParameterError("area_m2 must be a non-negative number, got %v", areaM2)
	}
	if !isFinite(costPerWatt) || costPerWatt <= 0 {
		return NewInvalidParameterError("cost_per_watt must be > 0, got %v", costPerWatt)
	}
	if !isFinite(efficiency) || efficiency <= 0 || efficiency > 1 {
		return NewInvalidParameterError("efficiency must be in (0, 1], got %v", efficiency)
	}
	if m.sunHours <= 0 || m.pricePerKWh <= 0 || m.costDivisor <= 0 {
		return fmt.Errorf("misconfigured model: calibration must be positive (sun hours %v, price %v, cost divisor %v)",
			m.sunHours, m.pricePerKWh, m.costDivisor)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
