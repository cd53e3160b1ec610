package anylas

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
	"gopkg.in/yaml.v3"
)

func init() {
	var l Listener
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeListener)
	var c configBlob
	serializer.RegisterTypedDeserializer(c.SerializerType(), deserializeConfigBlob)
}

// configBlob serializes a Config as YAML.
type configBlob struct {
	Config Config
}

func deserializeConfigBlob(d []byte) (*configBlob, error) {
	var res configBlob
	if err := yaml.Unmarshal(d, &res.Config); err != nil {
		return nil, essentials.AddCtx("deserialize config", err)
	}
	return &res, nil
}

func (c *configBlob) SerializerType() string {
	return "github.com/unixpickle/anylisten/anylas.configBlob"
}

func (c *configBlob) Serialize() ([]byte, error) {
	return yaml.Marshal(&c.Config)
}

// DeserializeListener deserializes a Listener.
//
// The resulting Listener is in evaluation mode and uses
// the standard logger and the creator for its configured
// precision.
func DeserializeListener(d []byte) (*Listener, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Listener", err)
	}
	if len(slice) == 0 {
		return nil, errors.New("deserialize Listener: missing config")
	}
	blob, ok := slice[0].(*configBlob)
	if !ok {
		return nil, fmt.Errorf("deserialize Listener: expected config but got %T", slice[0])
	}
	res, err := NewListener(blob.Config)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Listener", err)
	}
	vecs := res.stateVectors()
	if len(slice)-1 != len(vecs) {
		return nil, fmt.Errorf("deserialize Listener: expected %d vectors but got %d",
			len(vecs), len(slice)-1)
	}
	for i, x := range slice[1:] {
		saved, ok := x.(*anyvecsave.S)
		if !ok {
			return nil, fmt.Errorf("deserialize Listener: expected vector but got %T", x)
		}
		if err := copyVector(vecs[i], saved.Vector); err != nil {
			return nil, essentials.AddCtx(fmt.Sprintf("deserialize Listener: vector %d", i),
				err)
		}
	}
	return res, nil
}

// SerializerType returns the unique ID used to serialize
// a Listener with the serializer package.
func (l *Listener) SerializerType() string {
	return "github.com/unixpickle/anylisten/anylas.Listener"
}

// Serialize serializes the configuration, parameters, and
// batch normalization statistics of the Listener.
func (l *Listener) Serialize() ([]byte, error) {
	cfg := l.Config
	if _, ok := cfg.Creator.MakeNumeric(0).(float64); ok {
		cfg.Precision = Float64
	} else {
		cfg.Precision = Float32
	}
	slice := []serializer.Serializer{&configBlob{Config: cfg}}
	for _, v := range l.stateVectors() {
		slice = append(slice, &anyvecsave.S{Vector: v})
	}
	return serializer.SerializeSlice(slice)
}

// stateVectors lists every vector needed to reproduce the
// Listener's outputs, in a fixed order.
func (l *Listener) stateVectors() []anyvec.Vector {
	var res []anyvec.Vector
	for _, p := range l.Parameters() {
		res = append(res, p.Vector)
	}
	for _, bn := range l.Conv.BatchNorms() {
		res = append(res, bn.Layer.RunningMean, bn.Layer.RunningVariance)
	}
	return res
}

func copyVector(dst, src anyvec.Vector) error {
	if dst.Len() != src.Len() {
		return fmt.Errorf("expected length %d but got %d", dst.Len(), src.Len())
	}
	var data []float64
	switch srcData := src.Data().(type) {
	case []float64:
		data = srcData
	case []float32:
		data = make([]float64, len(srcData))
		for i, x := range srcData {
			data[i] = float64(x)
		}
	default:
		return fmt.Errorf("unsupported numeric list: %T", srcData)
	}
	dst.SetData(dst.Creator().MakeNumericList(data))
	return nil
}
