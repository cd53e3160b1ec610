package anylisten

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/serializer"
)

func init() {
	var a Activation
	serializer.RegisterTypedDeserializer(a.SerializerType(), DeserializeActivation)
}

// An Activation is a standard activation function.
type Activation int

// These are standard activation functions.
const (
	Tanh Activation = iota
	Sigmoid
	ReLU
)

var activationNames = []string{"tanh", "sigmoid", "relu"}

// DeserializeActivation deserializes an Activation.
func DeserializeActivation(d []byte) (Activation, error) {
	if len(d) != 1 {
		return 0, fmt.Errorf("deserialize Activation: data length (%d) should be 1", len(d))
	}
	if int(d[0]) >= len(activationNames) {
		return 0, fmt.Errorf("deserialize Activation: unknown activation ID: %d", d[0])
	}
	return Activation(d[0]), nil
}

// Apply applies the activation function.
func (a Activation) Apply(in anydiff.Res, n int) anydiff.Res {
	switch a {
	case Tanh:
		return anydiff.Tanh(in)
	case Sigmoid:
		return anydiff.Sigmoid(in)
	case ReLU:
		return anydiff.ClipPos(in)
	default:
		panic(fmt.Sprintf("unknown activation: %d", a))
	}
}

// String returns a lowercase name for the activation.
func (a Activation) String() string {
	if a < 0 || int(a) >= len(activationNames) {
		return fmt.Sprintf("Activation(%d)", int(a))
	}
	return activationNames[a]
}

// SerializerType returns the unique ID used to serialize
// an Activation.
func (a Activation) SerializerType() string {
	return "github.com/unixpickle/anylisten.Activation"
}

// Serialize serializes the activation.
func (a Activation) Serialize() ([]byte, error) {
	return []byte{byte(a)}, nil
}

// HardTanh clamps every component to [Min, Max].
//
// The gradient is 1 inside the range and 0 outside of it.
type HardTanh struct {
	Min float64
	Max float64
}

// Apply applies the clamp.
func (h *HardTanh) Apply(in anydiff.Res, n int) anydiff.Res {
	if h.Max < h.Min {
		panic("HardTanh maximum below minimum")
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		c := in.Output().Creator()
		aboveMin := anydiff.ClipPos(anydiff.AddScalar(in, c.MakeNumeric(-h.Min)))
		aboveMax := anydiff.ClipPos(anydiff.AddScalar(in, c.MakeNumeric(-h.Max)))
		return anydiff.AddScalar(anydiff.Sub(aboveMin, aboveMax), c.MakeNumeric(h.Min))
	})
}
