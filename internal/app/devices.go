package app

import (
	"context"
	"fmt"

	"inferdemo/internal/config"
	"inferdemo/internal/device"
)

// Devices prints the GPU count the engine reports and the device cfg would
// select. It never loads a model.
func Devices(ctx context.Context, cfg config.Config, d Deps) error {
	n := device.Count(ctx, d.Engine)
	dev := device.Select(ctx, cfg, device.CounterFunc(func(context.Context) (int, error) { return n, nil }))
	fmt.Fprintf(d.Stdout, "GPUs available: %d\n", n)
	fmt.Fprintf(d.Stdout, "Selected device: %s\n", dev)
	return nil
}
