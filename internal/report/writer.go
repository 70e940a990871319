package report

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/solarscope/internal/roi"
)

// Document is the machine readable form of a full assessment.
type Document struct {
	Version  string      `yaml:"version"`
	Analysis *Analysis   `yaml:"analysis,omitempty"`
	ROI      *ROISection `yaml:"roi,omitempty"`
}

// ROISection pairs the raw ROI numbers with their formatted form.
type ROISection struct {
	AreaSource string     `yaml:"area_source"` // "estimated" or "override"
	Result     roi.Result `yaml:"result"`
	Fields     ROIFields  `yaml:"fields"`
}

// WriteYAML encodes v as YAML into w
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes v to a YAML file at path
func WriteFile(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadDocument reads a document previously written with WriteFile
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}
