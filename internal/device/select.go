package device

import (
	"context"
	"strings"

	"inferdemo/internal/config"
)

// Counter reports how many GPUs the runtime can use.
type Counter interface {
	GPUCount(ctx context.Context) (int, error)
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(ctx context.Context) (int, error)

func (f CounterFunc) GPUCount(ctx context.Context) (int, error) { return f(ctx) }

// Select maps the configured preference to a concrete device.
//
//   - cpu: always the CPU.
//   - gpu or cuda: GPU(max(0, index)); availability is not checked.
//   - anything else: GPU(clamp(index, 0, count-1)) when the counter reports
//     GPUs, the CPU otherwise.
//
// Select never fails. A counter error or panic counts as zero GPUs.
func Select(ctx context.Context, cfg config.Config, c Counter) Device {
	switch strings.ToLower(strings.TrimSpace(cfg.Device)) {
	case "cpu":
		return CPU()
	case "gpu", "cuda":
		return GPU(max(0, cfg.GPUIndex))
	}
	n := Count(ctx, c)
	if n > 0 {
		return GPU(max(0, min(cfg.GPUIndex, n-1)))
	}
	return CPU()
}

// Count asks c for the GPU count, treating failure of any kind as zero.
func Count(ctx context.Context, c Counter) (n int) {
	if c == nil {
		return 0
	}
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	got, err := c.GPUCount(ctx)
	if err != nil || got < 0 {
		return 0
	}
	return got
}
