package anylas

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func randomVar(size int) *anydiff.Var {
	v := anyvec64.MakeVector(size)
	anyvec.Rand(v, anyvec.Normal, nil)
	return anydiff.NewVar(v)
}

func vectorData(r anydiff.Res) []float64 {
	return r.Output().Data().([]float64)
}

// testConfig creates a small float64 configuration which
// logs to a test hook.
func testConfig(convType string, inputSize int) (Config, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	noDropout := 0.0
	return Config{
		InputSize: inputSize,
		HiddenDim: 3,
		ConvType:  convType,
		DropoutP:  &noDropout,
		Precision: Float64,
		Logger:    logger,
	}, hook
}

func newTestListener(t *testing.T, cfg Config) *Listener {
	l, err := NewListener(cfg)
	require.NoError(t, err)
	return l
}

// timestep extracts the values of one timestep of one
// sequence from a (batch, time, width) tensor.
func timestep(data []float64, steps, width, b, t int) []float64 {
	offset := (b*steps + t) * width
	return data[offset : offset+width]
}

func warnings(hook *test.Hook) []string {
	var res []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			res = append(res, entry.Message)
		}
	}
	return res
}
