package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/source"
)

var analyzeOpts struct {
	input       string
	prompt      string
	area        float64
	costPerWatt float64
	efficiency  float64
	format      string
	output      string
	stats       bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a rooftop image and estimate the return on investment",
	Long: `Analyze estimates the usable rooftop area of an image or PDF site plan and
runs the ROI model on it. Without --input the most recent file in the
configured input directory is used. --area replaces the estimated area for the
ROI step.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		inputPath := analyzeOpts.input
		if inputPath == "" {
			latest, err := source.FindLatestImage(cfg.Source.InputDir)
			if err != nil {
				return errors.Wrapf(err, "no input given; put an image in %s", cfg.Source.InputDir)
			}
			inputPath = latest
			fmt.Fprintf(cmd.ErrOrStderr(), "[*] Selected file: %s\n", inputPath)
		}

		assessor, err := engine.NewAssessorFromConfig(cfg)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		opts := engine.Options{
			InputPath:    inputPath,
			Prompt:       analyzeOpts.prompt,
			AreaOverride: changedFloat(flags, "area", analyzeOpts.area),
			CostPerWatt:  changedFloat(flags, "cost-per-watt", analyzeOpts.costPerWatt),
			Efficiency:   changedFloat(flags, "efficiency", analyzeOpts.efficiency),
			Format:       analyzeOpts.format,
			OutputPath:   analyzeOpts.output,
			ShowStats:    analyzeOpts.stats,
			BuildVersion: version,
		}

		return engine.NewProject(assessor, opts, os.Stdout, cmd.ErrOrStderr()).Run(cmd.Context())
	},
}

// changedFloat returns a pointer to v only when the flag was set explicitly.
func changedFloat(flags *pflag.FlagSet, name string, v float64) *float64 {
	if !flags.Changed(name) {
		return nil
	}
	return &v
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeOpts.input, "input", "i", "", "Image or PDF to analyze (default: newest file in the input directory)")
	f.StringVarP(&analyzeOpts.prompt, "prompt", "p", "", "Prompt echoed in the report (default: configured prompt)")
	f.Float64Var(&analyzeOpts.area, "area", 0, "Override the estimated area in m² for the ROI step")
	f.Float64Var(&analyzeOpts.costPerWatt, "cost-per-watt", 0, "Installation cost per watt (default: configured value)")
	f.Float64Var(&analyzeOpts.efficiency, "efficiency", 0, "Panel efficiency in (0,1] (default: configured value)")
	f.StringVarP(&analyzeOpts.format, "format", "f", engine.FormatText, "Output format: text or yaml")
	f.StringVarP(&analyzeOpts.output, "output", "o", "", "Write the YAML report to this file")
	f.BoolVar(&analyzeOpts.stats, "stats", false, "Print a performance report")
}
