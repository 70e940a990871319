package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ivlev/solarscope/internal/report"
	"github.com/ivlev/solarscope/internal/roi"
	"github.com/ivlev/solarscope/internal/source"
	"github.com/ivlev/solarscope/internal/system"
)

const (
	FormatText = "text"
	FormatYAML = "yaml"

	documentVersion = "1.0"
)

// Options for a one-shot command line assessment.
type Options struct {
	InputPath    string
	Prompt       string
	AreaOverride *float64 // m², replaces the estimated area for the ROI step
	CostPerWatt  *float64
	Efficiency   *float64
	Format       string
	OutputPath   string // YAML file; empty writes to Out
	ShowStats    bool
	BuildVersion string
}

// Project runs one assessment end to end: decode, analyse, estimate ROI, print.
type Project struct {
	Assessor *Assessor
	Options  Options
	Out      io.Writer // report
	Console  io.Writer // progress markers
}

func NewProject(a *Assessor, opts Options, out, console io.Writer) *Project {
	return &Project{
		Assessor: a,
		Options:  opts,
		Out:      out,
		Console:  console,
	}
}

func (p *Project) Run(ctx context.Context) error {
	startTime := time.Now()
	cfg := p.Assessor.Config

	if p.Options.Format == "" {
		p.Options.Format = FormatText
	}
	if p.Options.Format != FormatText && p.Options.Format != FormatYAML {
		return fmt.Errorf("unknown output format: %s", p.Options.Format)
	}

	if p.Options.AreaOverride != nil {
		area := *p.Options.AreaOverride
		if area < cfg.Report.AreaMin || area > cfg.Report.AreaMax {
			return roi.NewInvalidParameterError("area override must be between %.0f and %.0f m², got %v",
				cfg.Report.AreaMin, cfg.Report.AreaMax, area)
		}
	}

	src, err := source.NewSource(p.Options.InputPath, cfg.Source.MaxPixels)
	if err != nil {
		return errors.Wrapf(err, "opening %s", p.Options.InputPath)
	}
	defer src.Close()

	fmt.Fprintf(p.Console, "[*] Source: %s | Pages: %d\n", src.Name(), src.PageCount())

	prompt := p.Options.Prompt
	if prompt == "" {
		prompt = cfg.Report.DefaultPrompt
	}

	analyzeStart := time.Now()
	assessment, err := p.Assessor.Analyze(ctx, src, prompt)
	if err != nil {
		return err
	}
	analyzeTime := time.Since(analyzeStart)

	fmt.Fprintf(p.Console, "[*] Analysis complete: %dx%d px, %.2f m²\n",
		assessment.Report.Width, assessment.Report.Height, assessment.Report.Estimate.AreaM2)

	areaSource := "estimated"
	area := assessment.Report.Estimate.AreaM2
	if p.Options.AreaOverride != nil {
		areaSource = "override"
		area = *p.Options.AreaOverride
	}

	roiResp, err := p.Assessor.EstimateROI(ctx, ROIRequest{
		AreaM2:      area,
		CostPerWatt: p.Options.CostPerWatt,
		Efficiency:  p.Options.Efficiency,
	})
	if err != nil {
		return err
	}

	doc := &report.Document{
		Version:  documentVersion,
		Analysis: &assessment.Report,
		ROI: &report.ROISection{
			AreaSource: areaSource,
			Result:     roiResp.Result,
			Fields:     roiResp.Fields,
		},
	}

	if err := p.write(doc); err != nil {
		return err
	}

	if p.Options.ShowStats {
		p.printStats(ctx, time.Since(startTime), analyzeTime)
	}

	return nil
}

func (p *Project) write(doc *report.Document) error {
	if p.Options.OutputPath != "" {
		if err := report.WriteFile(p.Options.OutputPath, doc); err != nil {
			return errors.Wrapf(err, "writing %s", p.Options.OutputPath)
		}
		fmt.Fprintf(p.Console, "[+++] Report saved: %s\n", p.Options.OutputPath)
		if p.Options.Format == FormatYAML {
			return nil
		}
	}

	if p.Options.Format == FormatYAML {
		return report.WriteYAML(p.Out, doc)
	}

	_, err := fmt.Fprintf(p.Out, "%s\n\n%s\n", doc.Analysis.Markdown(), doc.ROI.Fields.Text())
	return err
}

func (p *Project) printStats(ctx context.Context, total, analyze time.Duration) {
	stats, err := system.Snapshot(ctx)
	if err != nil {
		zap.S().Named("engine").Warnw("failed to collect process stats", "error", err)
	}

	fmt.Fprintf(p.Console,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.3fs\n"+
			"Analysis: %.3fs\n"+
			"Memory (RSS): %s\n"+
			"----------------------------\n",
		p.Options.BuildVersion, total.Seconds(), analyze.Seconds(), system.HumanBytes(stats.RSSBytes),
	)
}
