package anylisten

import (
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// Debug is a pass-through layer that logs statistics
// about the vectors flowing through it.
type Debug struct {
	// Logger receives the statistics at debug level.
	// If nil, the standard logrus logger is used.
	Logger logrus.FieldLogger

	ID            string
	PrintRaw      bool
	PrintMean     bool
	PrintVariance bool
}

// Apply logs its input and returns it untouched.
func (d *Debug) Apply(in anydiff.Res, n int) anydiff.Res {
	fields := logrus.Fields{"layer": d.ID, "batch": n}
	if d.PrintRaw {
		fields["values"] = in.Output().Data()
	}
	if d.PrintMean || d.PrintVariance {
		mean, variance := sampleMoments(in.Output(), n)
		if d.PrintMean {
			fields["mean"] = mean.Data()
		}
		if d.PrintVariance {
			fields["variance"] = variance.Data()
		}
	}
	d.logger().WithFields(fields).Debug("layer statistics")
	return in
}

func (d *Debug) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// sampleMoments computes the per-component mean and
// variance over a batch of n vectors.
func sampleMoments(v anyvec.Vector, n int) (mean, variance anyvec.Vector) {
	cols := v.Len() / n
	scale := v.Creator().MakeNumeric(1 / float64(n))

	mean = anyvec.SumRows(v, cols)
	mean.Scale(scale)

	squares := v.Copy()
	squares.Mul(v)
	variance = anyvec.SumRows(squares, cols)
	variance.Scale(scale)
	meanSq := mean.Copy()
	meanSq.Mul(mean)
	variance.Sub(meanSq)
	return
}
