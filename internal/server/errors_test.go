package server

import (
	"image"
	"math"
	"net/http"

	"github.com/go-playground/validator/v10"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/ivlev/solarscope/internal/analyzer"
	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/report"
	"github.com/ivlev/solarscope/internal/roi"
	"github.com/ivlev/solarscope/internal/source"
	"github.com/ivlev/solarscope/pkg/metrics"
)

var _ = Describe("error mapping", func() {
	DescribeTable("statusFor",
		func(err error, status int, result string) {
			Expect(statusFor(err)).To(Equal(status))
			Expect(resultFor(err)).To(Equal(result))
		},
		Entry("decode error", source.NewDecodeError("bad png"), http.StatusUnsupportedMediaType, metrics.ResultDecodeError),
		Entry("wrapped decode error", errors.Wrap(source.NewDecodeError("bad png"), "opening"), http.StatusUnsupportedMediaType, metrics.ResultDecodeError),
		Entry("invalid image", analyzer.NewInvalidImageError("empty"), http.StatusUnprocessableEntity, metrics.ResultInvalidImage),
		Entry("invalid parameter", roi.NewInvalidParameterError("negative"), http.StatusBadRequest, metrics.ResultInvalidParams),
		Entry("validation errors", validator.ValidationErrors{}, http.StatusBadRequest, metrics.ResultError),
		Entry("too many pixels", source.NewTooLargeError("huge"), http.StatusRequestEntityTooLarge, metrics.ResultTooLarge),
		Entry("too large", newTooLargeError(10), http.StatusRequestEntityTooLarge, metrics.ResultBadRequest),
		Entry("bad request", newBadRequestError("nope"), http.StatusBadRequest, metrics.ResultBadRequest),
		Entry("misconfigured estimator", zeroDivisorError(), http.StatusInternalServerError, metrics.ResultError),
		Entry("anything else", errors.New("boom"), http.StatusInternalServerError, metrics.ResultError),
	)

	It("labels success as ok", func() {
		Expect(resultFor(nil)).To(Equal(metrics.ResultOK))
	})
})

var _ = Describe("ROI reply", func() {
	It("reports an unrecoverable payback as null", func() {
		res, err := roi.NewModel().EstimateDefault(0)
		Expect(err).To(BeNil())
		Expect(math.IsInf(res.PaybackYears, 1)).To(BeTrue())

		reply := newROIReply("id", &engine.ROIResponse{Result: res, Fields: report.FormatROI(res, "₹")})

		Expect(reply.PaybackYears).To(BeNil())
		Expect(reply.PaybackRecoverable).To(BeFalse())
		Expect(reply.Formatted.Payback).To(Equal(report.NotRecoverable))
	})

	It("keeps a finite payback", func() {
		res, err := roi.NewModel().EstimateDefault(100)
		Expect(err).To(BeNil())

		reply := newROIReply("id", &engine.ROIResponse{Result: res, Fields: report.FormatROI(res, "₹")})

		Expect(reply.PaybackYears).NotTo(BeNil())
		Expect(*reply.PaybackYears).To(BeNumerically("~", 9000.0/162000.0, 1e-12))
		Expect(reply.PaybackRecoverable).To(BeTrue())
	})
})

func zeroDivisorError() error {
	_, err := (&analyzer.ThresholdEstimator{Threshold: 100}).Estimate(image.NewGray(image.Rect(0, 0, 4, 4)))
	return err
}
