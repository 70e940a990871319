package engine

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/analyzer"
	"github.com/ivlev/solarscope/internal/config"
	"github.com/ivlev/solarscope/internal/report"
	"github.com/ivlev/solarscope/internal/roi"
	"github.com/ivlev/solarscope/internal/source"
)

// Assessor connects decoded sources to the area estimator and the ROI model.
// It holds no per-request state and is safe for concurrent use.
type Assessor struct {
	Config    *config.Config
	Estimator analyzer.AreaEstimator
	Model     *roi.Model
}

// Assessment is the result of analysing one image.
type Assessment struct {
	Report report.Analysis
	Image  image.Image
}

// ROIRequest carries the area and the optional economic overrides.
// Nil overrides fall back to the model defaults.
type ROIRequest struct {
	AreaM2      float64
	CostPerWatt *float64
	Efficiency  *float64
}

// ROIResponse pairs the raw ROI numbers with their display form.
type ROIResponse struct {
	Result roi.Result
	Fields report.ROIFields
}

func NewAssessor(cfg *config.Config, est analyzer.AreaEstimator, model *roi.Model) *Assessor {
	return &Assessor{
		Config:    cfg,
		Estimator: est,
		Model:     model,
	}
}

// NewAssessorFromConfig builds the estimator and model described by cfg.
func NewAssessorFromConfig(cfg *config.Config) (*Assessor, error) {
	est, err := cfg.Estimator()
	if err != nil {
		return nil, errors.Wrap(err, "creating estimator")
	}
	return NewAssessor(cfg, est, cfg.ROIModel()), nil
}

// Analyze renders the first page of src and estimates its usable rooftop area.
func (a *Assessor) Analyze(ctx context.Context, src source.Source, prompt string) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := zap.S().Named("engine")

	if src.PageCount() == 0 {
		return nil, analyzer.NewInvalidImageError("%s contains no pages", src.Name())
	}
	if src.PageCount() > 1 {
		logger.Infow("only the first page is analysed", "source", src.Name(), "pages", src.PageCount())
	}

	img, err := src.RenderPage(0, a.Config.Source.DPI)
	if err != nil {
		return nil, err
	}

	res, err := a.Estimator.Estimate(img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	analysis := report.Build(prompt, src.Name(), b.Dx(), b.Dy(), res, a.quickModel(), a.Config.Report.ShadingNote)

	logger.Debugw("area estimated",
		"source", src.Name(),
		"width", b.Dx(),
		"height", b.Dy(),
		"bright_pixels", res.BrightPixels,
		"area_m2", res.AreaM2,
	)

	return &Assessment{Report: analysis, Image: img}, nil
}

// Mask returns the usable-surface mask of img when the estimator supports it.
func (a *Assessor) Mask(img image.Image) (*image.Gray, bool, error) {
	m, ok := a.Estimator.(analyzer.Masker)
	if !ok {
		return nil, false, nil
	}
	mask, err := m.Mask(img)
	return mask, true, err
}

// EstimateROI runs the ROI model for the request.
func (a *Assessor) EstimateROI(ctx context.Context, req ROIRequest) (*ROIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	costPerWatt := a.Model.DefaultCostPerWatt()
	if req.CostPerWatt != nil {
		costPerWatt = *req.CostPerWatt
	}
	efficiency := a.Model.DefaultEfficiency()
	if req.Efficiency != nil {
		efficiency = *req.Efficiency
	}

	res, err := a.Model.Estimate(req.AreaM2, costPerWatt, efficiency)
	if err != nil {
		return nil, err
	}

	zap.S().Named("engine").Debugw("roi estimated", "summary", res.Summary())

	return &ROIResponse{
		Result: res,
		Fields: report.FormatROI(res, a.Config.Report.Currency),
	}, nil
}

func (a *Assessor) quickModel() report.QuickModel {
	return report.QuickModel{
		PanelAreaM2:   a.Config.Report.PanelAreaM2,
		YieldKWhPerM2: a.Config.Report.YieldKWhPerM2,
	}
}
