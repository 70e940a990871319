package server_test

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ivlev/solarscope/internal/config"
	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/server"
	"github.com/ivlev/solarscope/pkg/middleware"
)

func uniformPNG(w, h int, level uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func halfBrightPNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// pngHeader returns a PNG that declares a w x h grayscale image but carries no pixel data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 0, 0, 0, 0)

	Expect(binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))).To(Succeed())
	buf.Write(chunk)
	Expect(binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))).To(Succeed())
	return buf.Bytes()
}

func multipartBody(filename string, data []byte, prompt string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		Expect(err).To(BeNil())
		_, err = part.Write(data)
		Expect(err).To(BeNil())
	}
	if prompt != "" {
		Expect(mw.WriteField("prompt", prompt)).To(Succeed())
	}
	Expect(mw.Close()).To(Succeed())
	return body, mw.FormDataContentType()
}

func decode(rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
	return out
}

func counterValue(reg *prometheus.Registry, name, result string) float64 {
	families, err := reg.Gather()
	Expect(err).To(BeNil())
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

var _ = Describe("solarscope server", func() {
	var (
		cfg    *config.Config
		reg    *prometheus.Registry
		router chi.Router
	)

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		cfg = config.Default()
		reg = prometheus.NewRegistry()
	})

	JustBeforeEach(func() {
		assessor, err := engine.NewAssessorFromConfig(cfg)
		Expect(err).To(BeNil())
		router, err = server.NewRouter(cfg, assessor, reg)
		Expect(err).To(BeNil())
	})

	Context("html pages", func() {
		It("serves the upload form with the default prompt", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(HavePrefix("text/html"))
			Expect(rec.Body.String()).To(ContainSubstring(`enctype="multipart/form-data"`))
			Expect(rec.Body.String()).To(ContainSubstring("Analyze this rooftop for solar panel suitability"))
		})

		It("analyzes an upload and pre-fills the ROI form", func() {
			body, contentType := multipartBody("roof.png", halfBrightPNG(200, 100), "")
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			page := rec.Body.String()
			Expect(page).To(ContainSubstring("Estimated Rooftop Area**: 1.00 m²"))
			Expect(page).To(ContainSubstring("Suitable for ~0 panels"))
			Expect(page).To(ContainSubstring("Shading Issues: Minor near corners."))
			Expect(page).To(ContainSubstring("data:image/png;base64,"))
			Expect(page).To(ContainSubstring("Usable surface (50.0%)"))
			// 1 m² is below the override range, so the form starts at the default
			Expect(page).To(ContainSubstring(`value="100.00"`))
		})

		It("pre-fills the ROI form with an estimate inside the range", func() {
			// 400x250 white: 100000 bright pixels, 10 m²
			body, contentType := multipartBody("roof.png", uniformPNG(400, 250, 255), "")
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`value="10.00"`))
		})

		It("refuses an upload that declares too many pixels", func() {
			body, contentType := multipartBody("bomb.png", pngHeader(16000, 16000), "")
			req := httptest.NewRequest(http.MethodPost, "/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(rec.Body.String()).To(ContainSubstring("above the limit of 50000000 pixels"))
		})

		It("renders the ROI fields and a QR code", func() {
			form := url.Values{"area_m2": {"100"}, "cost_per_watt": {"50"}, "efficiency": {"0.18"}}
			req := httptest.NewRequest(http.MethodPost, "/roi", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			page := rec.Body.String()
			Expect(page).To(ContainSubstring("27000.00 kWh/year"))
			Expect(page).To(ContainSubstring("₹162000.00"))
			Expect(page).To(ContainSubstring("₹9000.00"))
			Expect(page).To(ContainSubstring("0.1 years"))
			Expect(page).To(ContainSubstring(`alt="ROI summary QR code"`))
		})

		It("shows a readable error page for a bad form value", func() {
			form := url.Values{"area_m2": {"lots"}}
			req := httptest.NewRequest(http.MethodPost, "/roi", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("area_m2 is not a number"))
		})

		It("rejects an area outside the override range", func() {
			form := url.Values{"area_m2": {"600"}}
			req := httptest.NewRequest(http.MethodPost, "/roi", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("area_m2 must be between 10 and 500"))
		})
	})

	Context("analyze api", func() {
		It("returns the analysis as JSON", func() {
			body, contentType := multipartBody("roof.png", uniformPNG(200, 100, 255), "find space")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			reply := decode(rec)
			analysis := reply["analysis"].(map[string]any)
			estimate := analysis["estimate"].(map[string]any)
			Expect(analysis["prompt"]).To(Equal("find space"))
			Expect(analysis["panel_count"]).To(BeNumerically("==", 1))
			Expect(analysis["quick_output_kwh"]).To(BeNumerically("~", 30.0, 1e-9))
			Expect(estimate["bright_pixels"]).To(BeNumerically("==", 20000))
			Expect(estimate["area_m2"]).To(BeNumerically("~", 2.0, 1e-9))
			Expect(reply["markdown"]).To(ContainSubstring("**Estimated Rooftop Area**: 2.00 m²"))

			Expect(counterValue(reg, "solarscope_analyses_total", "ok")).To(Equal(1.0))
		})

		It("counts a dark image as zero area", func() {
			body, contentType := multipartBody("dark.png", uniformPNG(64, 64, 180), "")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			estimate := decode(rec)["analysis"].(map[string]any)["estimate"].(map[string]any)
			Expect(estimate["area_m2"]).To(BeNumerically("==", 0))
		})

		It("maps an undecodable upload to 415", func() {
			body, contentType := multipartBody("roof.png", []byte("definitely not an image"), "")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusUnsupportedMediaType))
			Expect(decode(rec)["error"]).NotTo(BeEmpty())
			Expect(counterValue(reg, "solarscope_analyses_total", "decode_error")).To(Equal(1.0))
		})

		It("requires an image field", func() {
			body, contentType := multipartBody("", nil, "only a prompt")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a request that is not multipart", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{}"))
			req.Header.Set("Content-Type", "application/json")

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		Context("with a small pixel limit", func() {
			BeforeEach(func() {
				cfg.Source.MaxPixels = 1_000_000
			})

			It("refuses a small, highly compressed upload with large dimensions", func() {
				img := image.NewGray(image.Rect(0, 0, 3000, 3000))
				var buf bytes.Buffer
				enc := png.Encoder{CompressionLevel: png.BestCompression}
				Expect(enc.Encode(&buf, img)).To(Succeed())
				Expect(buf.Len()).To(BeNumerically("<", 64<<10))

				body, contentType := multipartBody("bomb.png", buf.Bytes(), "")
				req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
				req.Header.Set("Content-Type", contentType)

				rec := serve(req)

				Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(decode(rec)["error"]).To(ContainSubstring("3000x3000"))
			})
		})

		It("refuses a header declaring gigapixels without decoding it", func() {
			body, contentType := multipartBody("bomb.png", pngHeader(100000, 100000), "")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
			req.Header.Set("Content-Type", contentType)

			rec := serve(req)

			Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(counterValue(reg, "solarscope_analyses_total", "too_large")).To(Equal(1.0))
		})

		Context("with a small upload limit", func() {
			BeforeEach(func() {
				cfg.Server.MaxUploadBytes = 1024
			})

			It("rejects oversized uploads with 413", func() {
				body, contentType := multipartBody("big.png", bytes.Repeat([]byte{0x42}, 8192), "")
				req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
				req.Header.Set("Content-Type", contentType)

				rec := serve(req)

				Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
			})
		})
	})

	Context("roi api", func() {
		postJSON := func(payload string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/roi", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			return serve(req)
		}

		It("uses the configured defaults for omitted economics", func() {
			rec := postJSON(`{"area_m2": 100}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			reply := decode(rec)
			Expect(reply["cost_per_watt"]).To(BeNumerically("==", 50))
			Expect(reply["efficiency"]).To(BeNumerically("~", 0.18, 1e-12))
			Expect(reply["kw_installed"]).To(BeNumerically("~", 18.0, 1e-9))
			Expect(reply["annual_output_kwh"]).To(BeNumerically("~", 27000.0, 1e-6))
			Expect(reply["savings_per_year"]).To(BeNumerically("~", 162000.0, 1e-6))
			Expect(reply["cost"]).To(BeNumerically("~", 9000.0, 1e-6))
			Expect(reply["payback_years"]).To(BeNumerically("~", 9000.0/162000.0, 1e-9))
			Expect(reply["payback_recoverable"]).To(BeTrue())

			formatted := reply["formatted"].(map[string]any)
			Expect(formatted["cost"]).To(Equal("₹9000.00"))
			Expect(formatted["payback"]).To(Equal("0.1 years"))

			Expect(counterValue(reg, "solarscope_roi_estimates_total", "ok")).To(Equal(1.0))
		})

		It("honours explicit economics", func() {
			rec := postJSON(`{"area_m2": 200, "cost_per_watt": 30, "efficiency": 1}`)

			Expect(rec.Code).To(Equal(http.StatusOK))
			reply := decode(rec)
			Expect(reply["kw_installed"]).To(BeNumerically("~", 200.0, 1e-9))
			Expect(reply["cost"]).To(BeNumerically("~", 60000.0, 1e-6))
		})

		DescribeTable("rejects invalid requests with 400",
			func(payload string) {
				rec := postJSON(payload)
				Expect(rec.Code).To(Equal(http.StatusBadRequest))
				Expect(decode(rec)["error"]).NotTo(BeEmpty())
			},
			Entry("missing area", `{}`),
			Entry("area below range", `{"area_m2": 5}`),
			Entry("area above range", `{"area_m2": 501}`),
			Entry("zero cost per watt", `{"area_m2": 100, "cost_per_watt": 0}`),
			Entry("negative cost per watt", `{"area_m2": 100, "cost_per_watt": -1}`),
			Entry("zero efficiency", `{"area_m2": 100, "efficiency": 0}`),
			Entry("efficiency above one", `{"area_m2": 100, "efficiency": 1.5}`),
			Entry("malformed json", `{"area_m2": `),
		)

		It("names the offending field", func() {
			rec := postJSON(`{"area_m2": 100, "efficiency": 1.5}`)
			Expect(decode(rec)["error"]).To(ContainSubstring("efficiency must be at most 1"))
			Expect(counterValue(reg, "solarscope_roi_estimates_total", "invalid_parameter")).To(Equal(1.0))
		})

		It("encodes the summary as a QR code", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/roi/qr?area_m2=100&size=128", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("image/png"))

			img, err := png.Decode(rec.Body)
			Expect(err).To(BeNil())
			Expect(img.Bounds().Dx()).To(Equal(128))
		})

		It("rejects an invalid QR size", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/api/v1/roi/qr?area_m2=100&size=0", nil))
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("plumbing", func() {
		It("reports health", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode(rec)["status"]).To(Equal("ok"))
		})

		It("echoes the request id", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/roi", strings.NewReader(`{}`))
			req.Header.Set(middleware.RequestIDHeader, "req-123")

			rec := serve(req)

			Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal("req-123"))
			Expect(decode(rec)["request_id"]).To(Equal("req-123"))
		})

		It("generates a request id when none is sent", func() {
			rec := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
			Expect(rec.Header().Get(middleware.RequestIDHeader)).NotTo(BeEmpty())
		})

		It("records request metrics by route pattern", func() {
			serve(httptest.NewRequest(http.MethodGet, "/health", nil))

			families, err := reg.Gather()
			Expect(err).To(BeNil())
			names := []string{}
			for _, mf := range families {
				names = append(names, mf.GetName())
			}
			Expect(names).To(ContainElement("chi_requests_total"))
		})

		It("serves collected metrics on the metrics handler", func() {
			serve(httptest.NewRequest(http.MethodGet, "/health", nil))

			metricsServer := httptest.NewServer(server.NewMetricServerHandler(reg))
			defer metricsServer.Close()

			resp, err := http.Get(metricsServer.URL + "/metrics")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			Expect(string(data)).To(ContainSubstring(`chi_requests_total{code="200",method="GET",path="/health",service="solarscope"} 1`))
		})
	})
})
