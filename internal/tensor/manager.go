package tensor

import (
	"errors"
	"fmt"

	"inferdemo/internal/device"
)

// ErrManagerClosed is returned by a Manager after Close.
var ErrManagerClosed = errors.New("tensor manager closed")

// Manager allocates tensors for one device and releases them together.
// It is not safe for concurrent use.
type Manager struct {
	dev     device.Device
	tensors []*Tensor
	closed  bool
}

// NewManager returns a manager bound to dev.
func NewManager(dev device.Device) *Manager {
	return &Manager{dev: dev}
}

// Device returns the device the manager allocates for.
func (m *Manager) Device() device.Device { return m.dev }

// Zeros allocates a tensor filled with 0.
func (m *Manager) Zeros(name string, shape Shape, dt DType) (*Tensor, error) {
	return m.Full(name, shape, dt, 0)
}

// Ones allocates a tensor filled with 1.
func (m *Manager) Ones(name string, shape Shape, dt DType) (*Tensor, error) {
	return m.Full(name, shape, dt, 1)
}

// Full allocates a tensor filled with v.
func (m *Manager) Full(name string, shape Shape, dt DType, v float64) (*Tensor, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	t := &Tensor{Name: name, DType: dt, Shape: append(Shape(nil), shape...)}
	n := shape.Size()
	switch dt {
	case Int64:
		t.Ints = make([]int64, n)
		for i := range t.Ints {
			t.Ints[i] = int64(v)
		}
	case Float32:
		t.Floats = make([]float32, n)
		for i := range t.Floats {
			t.Floats[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dt)
	}
	m.tensors = append(m.tensors, t)
	return t, nil
}

// Len returns the number of live tensors.
func (m *Manager) Len() int { return len(m.tensors) }

// Close drops the data of every tensor the manager created. Calling it more
// than once is a no-op.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	for _, t := range m.tensors {
		t.Ints = nil
		t.Floats = nil
	}
	m.tensors = nil
	m.closed = true
	return nil
}
