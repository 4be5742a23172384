// Package device holds the compute-target value and the policy that picks one
// from a resolved configuration.
package device

import (
	"fmt"
	"strconv"
)

// Kind tags a Device.
type Kind int

const (
	KindCPU Kind = iota
	KindGPU
)

func (k Kind) String() string {
	if k == KindGPU {
		return "gpu"
	}
	return "cpu"
}

// Device is either the host CPU or one indexed GPU. The zero value is the CPU.
// Devices compare with ==.
type Device struct {
	Kind  Kind
	Index int
}

// CPU returns the host CPU device.
func CPU() Device { return Device{Kind: KindCPU} }

// GPU returns the GPU with the given index.
func GPU(index int) Device { return Device{Kind: KindGPU, Index: index} }

// IsGPU reports whether d targets a GPU.
func (d Device) IsGPU() bool { return d.Kind == KindGPU }

// String renders cpu() or gpu(N).
func (d Device) String() string {
	if d.IsGPU() {
		return fmt.Sprintf("gpu(%d)", d.Index)
	}
	return "cpu()"
}

// TorchName renders the device the way torch.device expects it.
func (d Device) TorchName() string {
	if d.IsGPU() {
		return "cuda:" + strconv.Itoa(d.Index)
	}
	return "cpu"
}
