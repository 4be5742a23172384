package device

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultProbeTimeout = 10 * time.Second

// SMIProbe counts NVIDIA GPUs by asking nvidia-smi for their indices. It honors
// CUDA_VISIBLE_DEVICES the way the CUDA runtime does.
type SMIProbe struct {
	// Bin defaults to nvidia-smi on PATH.
	Bin     string
	Timeout time.Duration
	// run executes the probe; tests replace it.
	run func(ctx context.Context, bin string, args ...string) ([]byte, error)
	// visible returns CUDA_VISIBLE_DEVICES; tests replace it.
	visible func() (string, bool)
}

// NewSMIProbe returns a probe using the nvidia-smi binary on PATH.
func NewSMIProbe() *SMIProbe { return &SMIProbe{} }

func (p *SMIProbe) GPUCount(ctx context.Context) (int, error) {
	bin := strings.TrimSpace(p.Bin)
	if bin == "" {
		lp, err := exec.LookPath("nvidia-smi")
		if err != nil {
			return 0, fmt.Errorf("nvidia-smi not found: %w", err)
		}
		bin = lp
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	run := p.run
	if run == nil {
		run = runCommand
	}
	out, err := run(ctx, bin, "--query-gpu=index", "--format=csv,noheader")
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi: %w", err)
	}
	n := countIndexLines(out)
	visible := p.visible
	if visible == nil {
		visible = func() (string, bool) { return os.LookupEnv("CUDA_VISIBLE_DEVICES") }
	}
	if v, ok := visible(); ok {
		n = min(n, countVisible(v))
	}
	return n, nil
}

func runCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

func countIndexLines(out []byte) int {
	n := 0
	s := bufio.NewScanner(bytes.NewReader(out))
	for s.Scan() {
		if strings.TrimSpace(s.Text()) != "" {
			n++
		}
	}
	return n
}

// countVisible counts the entries of a CUDA_VISIBLE_DEVICES value. The runtime
// stops at the first invalid (negative) entry.
func countVisible(v string) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n := 0
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasPrefix(part, "-") {
			break
		}
		n++
	}
	return n
}
