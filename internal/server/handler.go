package server

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ivlev/solarscope/internal/config"
	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/roi"
	"github.com/ivlev/solarscope/internal/source"
	"github.com/ivlev/solarscope/pkg/metrics"
)

const uploadField = "image"

type handler struct {
	cfg       *config.Config
	assessor  *engine.Assessor
	metrics   *metrics.Registry
	templates *template.Template
	validate  *validator.Validate
}

func newHandler(cfg *config.Config, assessor *engine.Assessor, m *metrics.Registry) (*handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &handler{
		cfg:       cfg,
		assessor:  assessor,
		metrics:   m,
		templates: tmpl,
		validate:  v,
	}, nil
}

// roiRequest is the ROI input shared by the form and the JSON API.
// Omitted economics fall back to the configured defaults; explicit zeros are rejected.
type roiRequest struct {
	AreaM2      *float64 `json:"area_m2" validate:"required"`
	CostPerWatt *float64 `json:"cost_per_watt,omitempty" validate:"omitempty,gt=0"`
	Efficiency  *float64 `json:"efficiency,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// toEngine validates the request and converts it. The area must lie in the
// configured override range.
func (h *handler) toEngine(req roiRequest) (engine.ROIRequest, error) {
	if err := h.validate.Struct(req); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return engine.ROIRequest{}, roi.NewInvalidParameterError("%s", describeValidation(errs))
		}
		return engine.ROIRequest{}, err
	}

	areaRule := fmt.Sprintf("gte=%g,lte=%g", h.cfg.Report.AreaMin, h.cfg.Report.AreaMax)
	if err := h.validate.Var(*req.AreaM2, areaRule); err != nil {
		return engine.ROIRequest{}, roi.NewInvalidParameterError("area_m2 must be between %g and %g m², got %g",
			h.cfg.Report.AreaMin, h.cfg.Report.AreaMax, *req.AreaM2)
	}

	return engine.ROIRequest{
		AreaM2:      *req.AreaM2,
		CostPerWatt: req.CostPerWatt,
		Efficiency:  req.Efficiency,
	}, nil
}

// estimateROI validates req, runs the model and records the outcome.
func (h *handler) estimateROI(r *http.Request, req roiRequest) (*engine.ROIResponse, error) {
	engineReq, err := h.toEngine(req)
	if err != nil {
		h.metrics.ObserveROI(resultFor(err))
		return nil, err
	}

	resp, err := h.assessor.EstimateROI(r.Context(), engineReq)
	h.metrics.ObserveROI(resultFor(err))
	return resp, err
}

// roiRequestFromValues reads area_m2, cost_per_watt and efficiency from a form or query.
func roiRequestFromValues(get func(string) string) (roiRequest, error) {
	var (
		req roiRequest
		err error
	)
	if req.AreaM2, err = optionalFloat(get, "area_m2"); err != nil {
		return req, err
	}
	if req.CostPerWatt, err = optionalFloat(get, "cost_per_watt"); err != nil {
		return req, err
	}
	if req.Efficiency, err = optionalFloat(get, "efficiency"); err != nil {
		return req, err
	}
	return req, nil
}

func optionalFloat(get func(string) string, key string) (*float64, error) {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, newBadRequestError("%s is not a number: %q", key, raw)
	}
	return &v, nil
}

// analyze reads the uploaded image, estimates its area and records the outcome.
func (h *handler) analyze(w http.ResponseWriter, r *http.Request) (*engine.Assessment, error) {
	a, err := h.analyzeUpload(w, r)
	if err != nil {
		h.metrics.ObserveAnalysis(resultFor(err), 0)
		return nil, err
	}
	h.metrics.ObserveAnalysis(metrics.ResultOK, a.Report.Estimate.AreaM2)
	return a, nil
}

func (h *handler) analyzeUpload(w http.ResponseWriter, r *http.Request) (*engine.Assessment, error) {
	limit := h.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, newTooLargeError(limit)
		}
		return nil, newBadRequestError("expected a multipart upload: %v", err)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, newBadRequestError("an image file is required in the %q field", uploadField)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrapf(err, "reading upload %s", header.Filename)
	}

	src, err := source.FromBytes(header.Filename, data, h.cfg.Source.MaxPixels)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		prompt = h.cfg.Report.DefaultPrompt
	}

	return h.assessor.Analyze(r.Context(), src, prompt)
}

// formArea is the ROI form's initial area: the estimate when it lies in the
// override range, the configured default otherwise.
func (h *handler) formArea(area float64) float64 {
	if area < h.cfg.Report.AreaMin || area > h.cfg.Report.AreaMax {
		return h.cfg.Report.AreaDefault
	}
	return area
}
