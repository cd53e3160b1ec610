package anylas

import "fmt"

// A ConfigError indicates an invalid configuration option,
// such as an unknown convolution type.
type ConfigError struct {
	Option string
	Value  interface{}
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", c.Option, c.Value)
}

// A DimensionError indicates that two layers disagree on
// the width of the data flowing between them.
type DimensionError struct {
	Expected int
	Actual   int
	Reason   string
}

func (d *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch (%s): expected %d but got %d", d.Reason,
		d.Expected, d.Actual)
}

// A LengthError indicates that a sequence would have a
// non-positive length after the convolution stack.
type LengthError struct {
	// Index is the position of the sequence in the batch.
	Index int

	Input  int
	Output int
}

func (l *LengthError) Error() string {
	return fmt.Sprintf("sequence %d: length %d reduces to %d", l.Index, l.Input, l.Output)
}

// An InputError indicates a malformed input batch.
type InputError struct {
	Message string
}

func (i *InputError) Error() string {
	return "invalid input: " + i.Message
}

func inputErrorf(format string, args ...interface{}) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
