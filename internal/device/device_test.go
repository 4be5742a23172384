package device

import "testing"

func TestDeviceStringAndEquality(t *testing.T) {
	if CPU().String() != "cpu()" {
		t.Fatalf("cpu string = %q", CPU().String())
	}
	if GPU(1).String() != "gpu(1)" {
		t.Fatalf("gpu string = %q", GPU(1).String())
	}
	if GPU(1) != GPU(1) || GPU(1) == GPU(0) || CPU() == GPU(0) {
		t.Fatalf("equality broken")
	}
	if (Device{}) != CPU() {
		t.Fatalf("zero value should be the cpu")
	}
	if GPU(2).TorchName() != "cuda:2" || CPU().TorchName() != "cpu" {
		t.Fatalf("torch names wrong")
	}
}
