package server

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/report"
	"github.com/ivlev/solarscope/pkg/middleware"
)

//go:embed templates/*.html
var templatesFS embed.FS

const qrPageSize = 256

func parseTemplates() (*template.Template, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": func(ratio float64) string { return fmt.Sprintf("%.1f%%", ratio*100) },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	return tmpl, nil
}

type indexView struct {
	DefaultPrompt string
}

type analyzeView struct {
	Report      report.Analysis
	Markdown    string
	Preview     template.URL
	Mask        template.URL
	AreaMin     float64
	AreaMax     float64
	AreaValue   float64
	CostPerWatt float64
	Efficiency  float64
}

type roiView struct {
	Inputs roiInputs
	Fields report.ROIFields
	QRCode template.URL
}

type roiInputs struct {
	AreaM2      float64
	CostPerWatt float64
	Efficiency  float64
}

type errorView struct {
	Status    int
	Title     string
	Message   string
	RequestID string
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, http.StatusOK, "index.html", indexView{DefaultPrompt: h.cfg.Report.DefaultPrompt})
}

func (h *handler) analyzePage(w http.ResponseWriter, r *http.Request) {
	a, err := h.analyze(w, r)
	if err != nil {
		h.renderErrorPage(w, r, err)
		return
	}

	page, err := h.buildAnalyzePage(a)
	if err != nil {
		h.renderErrorPage(w, r, err)
		return
	}
	h.renderPage(w, r, http.StatusOK, "analyze.html", page)
}

func (h *handler) buildAnalyzePage(a *engine.Assessment) (analyzeView, error) {
	page := analyzeView{
		Report:      a.Report,
		Markdown:    a.Report.Markdown(),
		AreaMin:     h.cfg.Report.AreaMin,
		AreaMax:     h.cfg.Report.AreaMax,
		AreaValue:   h.formArea(a.Report.Estimate.AreaM2),
		CostPerWatt: h.assessor.Model.DefaultCostPerWatt(),
		Efficiency:  h.assessor.Model.DefaultEfficiency(),
	}

	preview, err := report.DataURI(report.Thumbnail(a.Image, h.cfg.Server.PreviewSize))
	if err != nil {
		return page, errors.Wrap(err, "encoding preview")
	}
	page.Preview = template.URL(preview)

	mask, ok, err := h.assessor.Mask(a.Image)
	if err != nil {
		return page, errors.Wrap(err, "computing mask")
	}
	if ok {
		uri, err := report.DataURI(report.Thumbnail(mask, h.cfg.Server.PreviewSize))
		if err != nil {
			return page, errors.Wrap(err, "encoding mask")
		}
		page.Mask = template.URL(uri)
	}

	return page, nil
}

func (h *handler) roiPage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderErrorPage(w, r, newBadRequestError("reading form: %v", err))
		return
	}

	req, err := roiRequestFromValues(r.PostForm.Get)
	if err != nil {
		h.renderErrorPage(w, r, err)
		return
	}

	resp, err := h.estimateROI(r, req)
	if err != nil {
		h.renderErrorPage(w, r, err)
		return
	}

	png, err := report.QRCode(resp.Fields, qrPageSize)
	if err != nil {
		h.renderErrorPage(w, r, err)
		return
	}

	h.renderPage(w, r, http.StatusOK, "roi.html", roiView{
		Inputs: roiInputs{
			AreaM2:      resp.Result.AreaM2,
			CostPerWatt: resp.Result.CostPerWatt,
			Efficiency:  resp.Result.Efficiency,
		},
		Fields: resp.Fields,
		QRCode: template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)),
	})
}

func (h *handler) renderErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logRequestError(r, status, err)

	h.renderPage(w, r, status, "error.html", errorView{
		Status:    status,
		Title:     http.StatusText(status),
		Message:   err.Error(),
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// renderPage executes the template into a buffer first so a template failure
// still produces a clean 500.
func (h *handler) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		zap.S().Named("server").Errorw("rendering template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func logRequestError(r *http.Request, status int, err error) {
	logger := zap.S().Named("server")
	if status >= http.StatusInternalServerError {
		logger.Errorw("request failed", "path", r.URL.Path, "request_id", middleware.GetRequestID(r.Context()), "error", err)
		return
	}
	logger.Debugw("request rejected", "path", r.URL.Path, "status", status, "error", err)
}
