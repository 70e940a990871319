package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/solarscope/internal/analyzer"
	"github.com/ivlev/solarscope/internal/roi"
)

// EnvPrefix is prepended to every environment override, e.g. SOLARSCOPE_SERVER_ADDRESS.
const EnvPrefix = "SOLARSCOPE"

type Config struct {
	Calibration Calibration `yaml:"calibration" envconfig:"CALIBRATION"`
	Economics   Economics   `yaml:"economics" envconfig:"ECONOMICS"`
	Report      Report      `yaml:"report" envconfig:"REPORT"`
	Source      Source      `yaml:"source" envconfig:"SOURCE"`
	Server      Server      `yaml:"server" envconfig:"SERVER"`
	LogLevel    string      `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// Calibration of the pixel-threshold area estimator.
type Calibration struct {
	Estimator string `yaml:"estimator" envconfig:"ESTIMATOR"`
	// Threshold luminance (0-255) a pixel must exceed to count as usable roof.
	Threshold uint8 `yaml:"threshold" envconfig:"THRESHOLD"`
	// ScaleDivisor pixels per m²; placeholder for the ground sampling distance.
	ScaleDivisor float64 `yaml:"scale_divisor" envconfig:"SCALE_DIVISOR" validate:"gt=0"`
}

// Economics of the ROI model.
type Economics struct {
	SunHours    float64 `yaml:"sun_hours" envconfig:"SUN_HOURS" validate:"gt=0"`         // h/year
	PricePerKWh float64 `yaml:"price_per_kwh" envconfig:"PRICE_PER_KWH" validate:"gt=0"` // currency/kWh
	CostDivisor float64 `yaml:"cost_divisor" envconfig:"COST_DIVISOR" validate:"gt=0"`
	CostPerWatt float64 `yaml:"cost_per_watt" envconfig:"COST_PER_WATT" validate:"gt=0"`
	Efficiency  float64 `yaml:"efficiency" envconfig:"EFFICIENCY" validate:"gt=0,lte=1"`
}

// Report holds the quick-look estimate shown next to the area and its presentation.
type Report struct {
	PanelAreaM2   float64 `yaml:"panel_area_m2" envconfig:"PANEL_AREA_M2" validate:"gt=0"`
	YieldKWhPerM2 float64 `yaml:"yield_kwh_per_m2" envconfig:"YIELD_KWH_PER_M2" validate:"gte=0"`
	ShadingNote   string  `yaml:"shading_note" envconfig:"SHADING_NOTE"`
	Currency      string  `yaml:"currency" envconfig:"CURRENCY"`
	DefaultPrompt string  `yaml:"default_prompt" envconfig:"DEFAULT_PROMPT"`
	// Range and initial value of the manual area override (m²).
	AreaMin     float64 `yaml:"area_min" envconfig:"AREA_MIN" validate:"gte=0"`
	AreaMax     float64 `yaml:"area_max" envconfig:"AREA_MAX" validate:"gtfield=AreaMin"`
	AreaDefault float64 `yaml:"area_default" envconfig:"AREA_DEFAULT" validate:"gtefield=AreaMin,ltefield=AreaMax"`
}

// Source controls how uploads and files are decoded.
type Source struct {
	DPI      int    `yaml:"dpi" envconfig:"DPI" validate:"gt=0"` // PDF rendering
	InputDir string `yaml:"input_dir" envconfig:"INPUT_DIR"`
	// MaxPixels caps width*height of a decoded image or rendered page.
	MaxPixels int64 `yaml:"max_pixels" envconfig:"MAX_PIXELS" validate:"gt=0"`
}

type Server struct {
	Address        string   `yaml:"address" envconfig:"ADDRESS"`
	MetricsAddress string   `yaml:"metrics_address" envconfig:"METRICS_ADDRESS"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	PreviewSize    int      `yaml:"preview_size" envconfig:"PREVIEW_SIZE" validate:"gt=0"`
}

// DefaultMaxPixels allows roughly a 50 megapixel image (about 200 MB as RGBA).
const DefaultMaxPixels = 50_000_000

const defaultPrompt = "Analyze this rooftop for solar panel suitability and give panel placement area, " +
	"estimated power output (kWh/year), and shading issues."

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Calibration: Calibration{
			Estimator:    "threshold",
			Threshold:    analyzer.DefaultThreshold,
			ScaleDivisor: analyzer.DefaultScaleDivisor,
		},
		Economics: Economics{
			SunHours:    roi.DefaultSunHours,
			PricePerKWh: roi.DefaultPricePerKWh,
			CostDivisor: roi.DefaultCostDivisor,
			CostPerWatt: roi.DefaultCostPerWatt,
			Efficiency:  roi.DefaultEfficiency,
		},
		Report: Report{
			PanelAreaM2:   1.6,
			YieldKWhPerM2: 15,
			ShadingNote:   "Minor near corners.",
			Currency:      "₹",
			DefaultPrompt: defaultPrompt,
			AreaMin:       10,
			AreaMax:       500,
			AreaDefault:   100,
		},
		Source: Source{
			DPI:       150,
			InputDir:  "input/images",
			MaxPixels: DefaultMaxPixels,
		},
		Server: Server{
			Address:        ":8080",
			MetricsAddress: ":9090",
			MaxUploadBytes: 20 << 20,
			AllowedOrigins: []string{"*"},
			PreviewSize:    512,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file at path and
// SOLARSCOPE_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "processing environment")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// ROIModel builds the ROI model described by the economics section.
func (c *Config) ROIModel() *roi.Model {
	return roi.NewModel(
		roi.WithSunHours(c.Economics.SunHours),
		roi.WithPricePerKWh(c.Economics.PricePerKWh),
		roi.WithCostDivisor(c.Economics.CostDivisor),
		roi.WithDefaultCostPerWatt(c.Economics.CostPerWatt),
		roi.WithDefaultEfficiency(c.Economics.Efficiency),
	)
}

// Estimator builds the area estimator described by the calibration section.
func (c *Config) Estimator() (analyzer.AreaEstimator, error) {
	est, err := analyzer.NewEstimator(c.Calibration.Estimator)
	if err != nil {
		return nil, err
	}
	if t, ok := est.(*analyzer.ThresholdEstimator); ok {
		t.Threshold = c.Calibration.Threshold
		t.ScaleDivisor = c.Calibration.ScaleDivisor
	}
	return est, nil
}

// String returns the configuration as YAML
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "<invalid config>"
	}
	return string(data)
}
