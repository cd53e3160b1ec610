package anylas

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/essentials"
	"gopkg.in/yaml.v3"
)

// Convolution stack types.
const (
	ConvIncrease = "increase"
	ConvRepeat   = "repeat"
)

// Recurrent cell types.
const (
	RNNLSTM    = "lstm"
	RNNGRU     = "gru"
	RNNVanilla = "rnn"
)

// Numeric precisions.
const (
	Float32 = "float32"
	Float64 = "float64"
)

const (
	defaultNumLayers = 1
	defaultRNNType   = RNNGRU
	defaultConvType  = ConvIncrease
	defaultDropoutP  = 0.5
	defaultPrecision = Float32
)

// Geometry describes a convolution along a single axis.
type Geometry struct {
	Kernel  int `yaml:"kernel"`
	Stride  int `yaml:"stride"`
	Padding int `yaml:"padding"`

	// Dilation defaults to 1 if it is 0.
	Dilation int `yaml:"dilation"`
}

// sameGeometry preserves lengths.
var sameGeometry = Geometry{Kernel: 3, Stride: 1, Padding: 1, Dilation: 1}

// Config configures a Listener.
type Config struct {
	InputSize int `yaml:"input_size"`
	HiddenDim int `yaml:"hidden_dim"`
	NumLayers int `yaml:"num_layers"`

	// Bidirectional defaults to true when nil.
	Bidirectional *bool `yaml:"bidirectional"`

	RNNType  string `yaml:"rnn_type"`
	ConvType string `yaml:"conv_type"`

	// DropoutP defaults to 0.5 when nil.
	DropoutP *float64 `yaml:"dropout_p"`

	// Precision selects the Creator when Creator is nil.
	Precision string `yaml:"precision"`

	// RepeatLayers gives the time-axis geometry of every
	// convolution in the repeat stack.
	// If empty, four length-preserving convolutions are
	// used.
	RepeatLayers []Geometry `yaml:"repeat_layers,omitempty"`

	// DebugStages inserts a logging layer after every
	// convolution module.
	DebugStages bool `yaml:"debug_stages,omitempty"`

	// ParallelConv convolves the images of a batch on
	// separate goroutines.
	ParallelConv bool `yaml:"parallel_conv,omitempty"`

	Creator anyvec.Creator     `yaml:"-"`
	Logger  logrus.FieldLogger `yaml:"-"`
}

// LoadConfig reads a YAML configuration file, fills in
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("load config", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration, fills in
// defaults, and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, essentials.AddCtx("parse config", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WithDefaults returns a copy of c with unset options set
// to their defaults.
func (c Config) WithDefaults() Config {
	if c.NumLayers == 0 {
		c.NumLayers = defaultNumLayers
	}
	if c.Bidirectional == nil {
		bidir := true
		c.Bidirectional = &bidir
	}
	if c.RNNType == "" {
		c.RNNType = defaultRNNType
	}
	if c.ConvType == "" {
		c.ConvType = defaultConvType
	}
	if c.DropoutP == nil {
		p := defaultDropoutP
		c.DropoutP = &p
	}
	if c.Precision == "" {
		c.Precision = defaultPrecision
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Validate checks that every option is usable.
// It should be called on a Config with defaults.
func (c *Config) Validate() error {
	if c.InputSize <= 0 {
		return &ConfigError{Option: "input_size", Value: c.InputSize}
	}
	if c.HiddenDim <= 0 {
		return &ConfigError{Option: "hidden_dim", Value: c.HiddenDim}
	}
	if c.NumLayers < 1 {
		return &ConfigError{Option: "num_layers", Value: c.NumLayers}
	}
	switch c.RNNType {
	case RNNLSTM, RNNGRU, RNNVanilla:
	default:
		return &ConfigError{Option: "rnn_type", Value: c.RNNType}
	}
	switch c.ConvType {
	case ConvIncrease, ConvRepeat:
	default:
		return &ConfigError{Option: "conv_type", Value: c.ConvType}
	}
	if c.DropoutP != nil && (*c.DropoutP < 0 || *c.DropoutP >= 1) {
		return &ConfigError{Option: "dropout_p", Value: *c.DropoutP}
	}
	if c.Creator == nil {
		switch c.Precision {
		case Float32, Float64:
		default:
			return &ConfigError{Option: "precision", Value: c.Precision}
		}
	}
	for _, g := range c.RepeatLayers {
		if g.Kernel < 1 || g.Stride < 1 || g.Padding < 0 || g.Dilation < 0 {
			return &ConfigError{Option: "repeat_layers", Value: g}
		}
	}
	return nil
}

// IsBidirectional reports whether the recurrent layers
// run in both directions.
func (c *Config) IsBidirectional() bool {
	return c.Bidirectional == nil || *c.Bidirectional
}

// Dropout returns the dropout probability.
func (c *Config) Dropout() float64 {
	if c.DropoutP == nil {
		return defaultDropoutP
	}
	return *c.DropoutP
}

func (c *Config) creator() anyvec.Creator {
	if c.Creator != nil {
		return c.Creator
	}
	if c.Precision == Float64 {
		return anyvec64.CurrentCreator()
	}
	return anyvec32.CurrentCreator()
}

func (c *Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}

func (c *Config) repeatLayers() []Geometry {
	if len(c.RepeatLayers) > 0 {
		return c.RepeatLayers
	}
	return []Geometry{sameGeometry, sameGeometry, sameGeometry, sameGeometry}
}
