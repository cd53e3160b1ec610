package anylas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestParseConfigDefaults(t *testing.T) {
	assert := assert.New(t)
	cfg, err := ParseConfig([]byte("input_size: 40\nhidden_dim: 256\n"))
	require.NoError(t, err)
	assert.Equal(40, cfg.InputSize)
	assert.Equal(256, cfg.HiddenDim)
	assert.Equal(1, cfg.NumLayers)
	assert.True(cfg.IsBidirectional())
	assert.Equal(RNNGRU, cfg.RNNType)
	assert.Equal(ConvIncrease, cfg.ConvType)
	assert.Equal(0.5, cfg.Dropout())
	assert.Equal(Float32, cfg.Precision)
	assert.NotNil(cfg.Logger)
}

func TestParseConfigExplicit(t *testing.T) {
	assert := assert.New(t)
	data := []byte(`
input_size: 40
hidden_dim: 128
num_layers: 3
bidirectional: false
rnn_type: lstm
conv_type: repeat
dropout_p: 0
precision: float64
repeat_layers:
  - {kernel: 3, stride: 2, padding: 1}
  - {kernel: 5, stride: 1, padding: 4, dilation: 2}
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(3, cfg.NumLayers)
	assert.False(cfg.IsBidirectional())
	assert.Equal(RNNLSTM, cfg.RNNType)
	assert.Equal(ConvRepeat, cfg.ConvType)
	assert.Equal(0.0, cfg.Dropout())
	assert.Equal([]Geometry{
		{Kernel: 3, Stride: 2, Padding: 1},
		{Kernel: 5, Stride: 1, Padding: 4, Dilation: 2},
	}, cfg.RepeatLayers)
	assert.IsType(anyvec64.CurrentCreator(), cfg.creator())
}

func TestParseConfigInvalid(t *testing.T) {
	cases := []struct {
		yaml   string
		option string
	}{
		{"input_size: 0\nhidden_dim: 4", "input_size"},
		{"input_size: 4\nhidden_dim: -1", "hidden_dim"},
		{"input_size: 4\nhidden_dim: 4\nnum_layers: -2", "num_layers"},
		{"input_size: 4\nhidden_dim: 4\nrnn_type: transformer", "rnn_type"},
		{"input_size: 4\nhidden_dim: 4\nconv_type: wide", "conv_type"},
		{"input_size: 4\nhidden_dim: 4\ndropout_p: 1", "dropout_p"},
		{"input_size: 4\nhidden_dim: 4\nprecision: float16", "precision"},
		{"input_size: 4\nhidden_dim: 4\nrepeat_layers: [{kernel: 3, stride: 0}]",
			"repeat_layers"},
	}
	for _, c := range cases {
		_, err := ParseConfig([]byte(c.yaml))
		require.Error(t, err, c.yaml)
		configErr, ok := err.(*ConfigError)
		require.True(t, ok, "unexpected error type %T", err)
		assert.Equal(t, c.option, configErr.Option)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "listener.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input_size: 8\nhidden_dim: 16\n"+
		"conv_type: repeat\n"), 0644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.InputSize)
	assert.Equal(t, ConvRepeat, cfg.ConvType)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
