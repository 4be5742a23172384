// Package tensor carries the host-side tensor values exchanged with an engine.
package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DType names an element type.
type DType string

const (
	Int64   DType = "int64"
	Float32 DType = "float32"
)

// Shape lists dimension sizes.
type Shape []int64

// Size is the element count; an empty shape is a scalar of size 1.
func (s Shape) Size() int64 {
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// String renders (1, 16, 768).
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.FormatInt(d, 10)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// MaxElements bounds the element count of an allocated tensor.
const MaxElements = 1 << 28

// ErrTooLarge is returned for shapes over MaxElements.
var ErrTooLarge = errors.New("tensor too large")

// Validate rejects negative dimensions and element counts above MaxElements.
// The count is checked per dimension so the product never overflows.
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("dimension %d is negative: %d", i, d)
		}
	}
	n := int64(1)
	for _, d := range s {
		if d == 0 {
			return nil
		}
		if n > MaxElements/d {
			return fmt.Errorf("%w: shape %s exceeds %d elements", ErrTooLarge, s, MaxElements)
		}
		n *= d
	}
	return nil
}

// Tensor is a named, typed, shaped value. Exactly one of Ints or Floats holds
// data, matching DType; both are empty for shape-only results.
type Tensor struct {
	Name   string    `json:"name,omitempty"`
	DType  DType     `json:"dtype"`
	Shape  Shape     `json:"shape"`
	Ints   []int64   `json:"ints,omitempty"`
	Floats []float32 `json:"floats,omitempty"`
}

// List is an ordered tensor list, the unit a predictor consumes and produces.
type List []*Tensor

// Shapes returns every tensor's shape in order.
func (l List) Shapes() []Shape {
	out := make([]Shape, len(l))
	for i, t := range l {
		out[i] = t.Shape
	}
	return out
}

// FirstShape renders the first tensor's shape, or "-" for an empty list.
func (l List) FirstShape() string {
	if len(l) == 0 || l[0] == nil {
		return "-"
	}
	return l[0].Shape.String()
}
