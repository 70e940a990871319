package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/report"
	"github.com/ivlev/solarscope/internal/system"
	"github.com/ivlev/solarscope/pkg/middleware"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type AnalyzeReply struct {
	RequestID string          `json:"request_id"`
	Analysis  report.Analysis `json:"analysis"`
	Markdown  string          `json:"markdown"`
}

// ROIReply is the JSON form of an ROI estimate. JSON has no infinity, so an
// unrecoverable payback is reported as null with PaybackRecoverable false.
type ROIReply struct {
	RequestID          string           `json:"request_id"`
	AreaM2             float64          `json:"area_m2"`
	CostPerWatt        float64          `json:"cost_per_watt"`
	Efficiency         float64          `json:"efficiency"`
	KWInstalled        float64          `json:"kw_installed"`
	AnnualOutputKWh    float64          `json:"annual_output_kwh"`
	SavingsPerYear     float64          `json:"savings_per_year"`
	Cost               float64          `json:"cost"`
	PaybackYears       *float64         `json:"payback_years"`
	PaybackRecoverable bool             `json:"payback_recoverable"`
	Formatted          report.ROIFields `json:"formatted"`
}

type HealthReply struct {
	Status string        `json:"status"`
	Stats  *system.Stats `json:"stats,omitempty"`
}

type ErrorReply struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (a AnalyzeReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (v ROIReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (h HealthReply) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (e ErrorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

func newROIReply(requestID string, resp *engine.ROIResponse) ROIReply {
	res := resp.Result
	reply := ROIReply{
		RequestID:          requestID,
		AreaM2:             res.AreaM2,
		CostPerWatt:        res.CostPerWatt,
		Efficiency:         res.Efficiency,
		KWInstalled:        res.KWInstalled,
		AnnualOutputKWh:    res.AnnualOutputKWh,
		SavingsPerYear:     res.SavingsPerYear,
		Cost:               res.Cost,
		PaybackRecoverable: res.Recoverable(),
		Formatted:          resp.Fields,
	}
	if res.Recoverable() {
		payback := res.PaybackYears
		reply.PaybackYears = &payback
	}
	return reply
}

func (h *handler) analyzeAPI(w http.ResponseWriter, r *http.Request) {
	a, err := h.analyze(w, r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	_ = render.Render(w, r, AnalyzeReply{
		RequestID: middleware.GetRequestID(r.Context()),
		Analysis:  a.Report,
		Markdown:  a.Report.Markdown(),
	})
}

func (h *handler) roiAPI(w http.ResponseWriter, r *http.Request) {
	var req roiRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.renderError(w, r, newBadRequestError("invalid JSON body: %v", err))
		return
	}

	resp, err := h.estimateROI(r, req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	_ = render.Render(w, r, newROIReply(middleware.GetRequestID(r.Context()), resp))
}

// roiQR renders the ROI summary of the query parameters as a PNG QR code.
func (h *handler) roiQR(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	size := defaultQRSize
	if raw := query.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxQRSize {
			h.renderError(w, r, newBadRequestError("size must be an integer between 1 and %d", maxQRSize))
			return
		}
		size = n
	}

	req, err := roiRequestFromValues(query.Get)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp, err := h.estimateROI(r, req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	png, err := report.QRCode(resp.Fields, size)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	reply := HealthReply{Status: "ok"}

	stats, err := system.Snapshot(r.Context())
	if err != nil {
		zap.S().Named("server").Warnw("collecting process stats", "error", err)
	} else {
		reply.Stats = &stats
	}

	_ = render.Render(w, r, reply)
}

func (h *handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logRequestError(r, status, err)

	_ = render.Render(w, r, ErrorReply{
		Status:    status,
		Error:     err.Error(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
