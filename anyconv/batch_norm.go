package anyconv

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const (
	defaultBNStabilizer = 1e-3
	defaultBNMomentum   = 0.1
)

// BatchNorm is a batch normalization layer.
//
// In training mode, each component is normalized with
// the statistics of the current batch, and those
// statistics are folded into running averages.
// Otherwise, the running averages are used, making the
// output of every sample independent of the rest of the
// batch.
type BatchNorm struct {
	// InputCount indicates how many components to normalize.
	//
	// For use after a fully-connected layer, this should be
	// the total number of output neurons.
	// For use after a convolutional layer, this should be
	// the number of filters.
	InputCount int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	// Running statistics used outside of training mode.
	RunningMean     anyvec.Vector
	RunningVariance anyvec.Vector

	// Stabilizer prevents numerical instability by adding a
	// small constant to variances to keep them from being 0.
	//
	// If it is 0, a default is used.
	Stabilizer float64

	// Momentum is the weight of the newest batch in the
	// running statistics.
	//
	// If it is 0, a default is used.
	Momentum float64

	Training bool
}

// NewBatchNorm creates a BatchNorm with an input size.
// The running variance starts at 1 and the running mean
// at 0.
func NewBatchNorm(c anyvec.Creator, inCount int) *BatchNorm {
	oneScaler := c.MakeVector(inCount)
	oneScaler.AddScalar(c.MakeNumeric(1))
	runningVar := c.MakeVector(inCount)
	runningVar.AddScalar(c.MakeNumeric(1))
	return &BatchNorm{
		InputCount:      inCount,
		Scalers:         anydiff.NewVar(oneScaler),
		Biases:          anydiff.NewVar(c.MakeVector(inCount)),
		RunningMean:     c.MakeVector(inCount),
		RunningVariance: runningVar,
	}
}

// Apply applies the layer to some inputs.
func (b *BatchNorm) Apply(in anydiff.Res, batch int) anydiff.Res {
	if in.Output().Len()%b.InputCount != 0 {
		panic("invalid input size")
	}
	return b.ApplyMasked(in, batch, in.Output().Len()/b.InputCount)
}

// ApplyMasked is like Apply, but the batch statistics are
// computed as if the input only had validRows rows.
// The remaining rows must be zero, which is the case for
// masked inputs.
//
// Outside of training mode, validRows is ignored.
func (b *BatchNorm) ApplyMasked(in anydiff.Res, batch, validRows int) anydiff.Res {
	if in.Output().Len()%b.InputCount != 0 {
		panic("invalid input size")
	}
	if !b.Training {
		return b.applyRunning(in)
	}
	if validRows <= 0 {
		panic("no valid rows to normalize")
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		c := in.Output().Creator()

		negMean := negMeanRows(in, b.InputCount, validRows)
		secondMoment := meanSquare(in, b.InputCount, validRows)
		variance := anydiff.Sub(secondMoment, anydiff.Square(negMean))
		b.updateRunning(negMean.Output(), variance.Output(), validRows)

		variance = anydiff.AddScalar(variance, c.MakeNumeric(b.stabilizer()))
		normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))

		totalScaler := anydiff.Mul(b.Scalers, normalizer)
		return anydiff.Pool(totalScaler, func(totalScaler anydiff.Res) anydiff.Res {
			return anydiff.ScaleAddRepeated(
				in,
				totalScaler,
				anydiff.Add(b.Biases, anydiff.Mul(negMean, totalScaler)),
			)
		})
	})
}

// Parameters returns a slice containing the scales and
// biases, in that order.
func (b *BatchNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{b.Scalers, b.Biases}
}

func (b *BatchNorm) applyRunning(in anydiff.Res) anydiff.Res {
	c := in.Output().Creator()

	normalizer := b.RunningVariance.Copy()
	normalizer.AddScalar(c.MakeNumeric(b.stabilizer()))
	anyvec.Pow(normalizer, c.MakeNumeric(-0.5))
	negMean := b.RunningMean.Copy()
	negMean.Scale(c.MakeNumeric(-1))

	totalScaler := anydiff.Mul(b.Scalers, anydiff.NewConst(normalizer))
	return anydiff.Pool(totalScaler, func(totalScaler anydiff.Res) anydiff.Res {
		return anydiff.ScaleAddRepeated(
			in,
			totalScaler,
			anydiff.Add(b.Biases, anydiff.Mul(anydiff.NewConst(negMean), totalScaler)),
		)
	})
}

func (b *BatchNorm) updateRunning(negMean, variance anyvec.Vector, rows int) {
	if b.RunningMean == nil || b.RunningVariance == nil {
		return
	}
	c := negMean.Creator()
	momentum := b.momentum()

	mean := negMean.Copy()
	mean.Scale(c.MakeNumeric(-momentum))
	b.RunningMean.Scale(c.MakeNumeric(1 - momentum))
	b.RunningMean.Add(mean)

	// The running variance uses the unbiased estimator.
	unbiased := variance.Copy()
	if rows > 1 {
		unbiased.Scale(c.MakeNumeric(float64(rows) / float64(rows-1)))
	}
	unbiased.Scale(c.MakeNumeric(momentum))
	b.RunningVariance.Scale(c.MakeNumeric(1 - momentum))
	b.RunningVariance.Add(unbiased)
}

func (b *BatchNorm) stabilizer() float64 {
	if b.Stabilizer == 0 {
		return defaultBNStabilizer
	} else {
		return b.Stabilizer
	}
}

func (b *BatchNorm) momentum() float64 {
	if b.Momentum == 0 {
		return defaultBNMomentum
	}
	return math.Min(1, b.Momentum)
}
