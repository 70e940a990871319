package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivlev/solarscope/internal/analyzer"
	"github.com/ivlev/solarscope/internal/roi"
)

// QuickModel is the rule-of-thumb estimate printed next to the measured area.
// It is a separate illustrative model from roi.Model and is not meant to agree with it.
type QuickModel struct {
	PanelAreaM2   float64 // m² taken by one panel
	YieldKWhPerM2 float64 // kWh/year per m² of usable roof
}

// Analysis is the textual report for one uploaded image.
type Analysis struct {
	Prompt         string          `json:"prompt" yaml:"prompt"`
	Source         string          `json:"source" yaml:"source"`
	Width          int             `json:"width" yaml:"width"`
	Height         int             `json:"height" yaml:"height"`
	Estimate       analyzer.Result `json:"estimate" yaml:"estimate"`
	PanelCount     int             `json:"panel_count" yaml:"panel_count"`
	QuickOutputKWh float64         `json:"quick_output_kwh" yaml:"quick_output_kwh"`
	ShadingNote    string          `json:"shading_note" yaml:"shading_note"`
}

// Build derives the panel count and quick output from an estimator result.
func Build(prompt, source string, width, height int, res analyzer.Result, model QuickModel, shadingNote string) Analysis {
	panels := 0
	if model.PanelAreaM2 > 0 {
		panels = int(math.Floor(res.AreaM2 / model.PanelAreaM2))
	}

	return Analysis{
		Prompt:         prompt,
		Source:         source,
		Width:          width,
		Height:         height,
		Estimate:       res,
		PanelCount:     panels,
		QuickOutputKWh: res.AreaM2 * model.YieldKWhPerM2,
		ShadingNote:    shadingNote,
	}
}

// Markdown renders the report the way it is shown to the user.
func (a Analysis) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Prompt**: %s\n\n", a.Prompt)
	fmt.Fprintf(&b, "**Estimated Rooftop Area**: %.2f m²\n", a.Estimate.AreaM2)
	fmt.Fprintf(&b, "- Suitable for ~%d panels\n", a.PanelCount)
	fmt.Fprintf(&b, "- Estimated Power Output: ~%.0f kWh/year\n", a.QuickOutputKWh)
	fmt.Fprintf(&b, "- Shading Issues: %s", a.ShadingNote)
	return b.String()
}

// ROIFields are the four formatted ROI values.
type ROIFields struct {
	Output  string `json:"output" yaml:"output"`
	Savings string `json:"savings" yaml:"savings"`
	Cost    string `json:"cost" yaml:"cost"`
	Payback string `json:"payback" yaml:"payback"`
}

// NotRecoverable is shown instead of a payback period when savings are zero.
const NotRecoverable = "not recoverable"

// FormatROI formats an ROI result using the given currency symbol.
func FormatROI(res roi.Result, currency string) ROIFields {
	payback := NotRecoverable
	if res.Recoverable() {
		payback = fmt.Sprintf("%.1f years", res.PaybackYears)
	}

	return ROIFields{
		Output:  fmt.Sprintf("%.2f kWh/year", res.AnnualOutputKWh),
		Savings: fmt.Sprintf("%s%.2f", currency, res.SavingsPerYear),
		Cost:    fmt.Sprintf("%s%.2f", currency, res.Cost),
		Payback: payback,
	}
}

// Text renders the fields as labelled lines.
func (f ROIFields) Text() string {
	return fmt.Sprintf("Estimated Output: %s\nAnnual Savings: %s\nInstallation Cost: %s\nPayback Period: %s",
		f.Output, f.Savings, f.Cost, f.Payback)
}
