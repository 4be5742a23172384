package torchscript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"inferdemo/internal/engine"
	"inferdemo/internal/logging"
	"inferdemo/internal/tensor"
)

const stderrTailBytes = 4096

// message is one line from the worker: a ready event, a reply, or an error.
type message struct {
	Event   string      `json:"event,omitempty"`
	Torch   string      `json:"torch,omitempty"`
	Outputs tensor.List `json:"outputs,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type request struct {
	Inputs tensor.List `json:"inputs"`
}

// worker owns one interpreter process with the model loaded.
type worker struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	outR   *os.File
	out    *bufio.Reader
	stderr *tailBuffer
	log    zerolog.Logger
	grace  time.Duration

	mu       sync.Mutex // one request in flight
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
}

type lineResult struct {
	line []byte
	err  error
}

func startWorker(ctx context.Context, py string, args []string, opts Options) (*worker, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd := exec.Command(py, args...)
	cmd.Stdout = pw
	tb := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = io.MultiWriter(tb, logging.NewLineWriter(opts.Logger, "worker"))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start worker: %w", err)
	}
	// the child holds its own copy; closing ours lets reads see EOF on exit
	pw.Close()

	w := &worker{
		cmd:    cmd,
		stdin:  stdin,
		outR:   pr,
		out:    bufio.NewReaderSize(pr, 64*1024),
		stderr: tb,
		log:    opts.Logger.With().Str("adapter", "torchscript").Int("pid", cmd.Process.Pid).Logger(),
		grace:  opts.StopGrace,
		done:   make(chan struct{}),
	}
	go func() {
		w.waitErr = cmd.Wait()
		close(w.done)
	}()
	w.log.Debug().Str("event", "start").Str("python", py).Msg("worker started")

	ctx, cancel := context.WithTimeout(ctx, opts.StartTimeout)
	defer cancel()
	msg, err := w.readMessage(ctx)
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		w.log.Warn().Str("event", "timeout").Msg("worker not ready in time")
		err = fmt.Errorf("worker not ready within %s; stderr tail: %s", opts.StartTimeout, w.stderr.String())
	case err != nil && ctx.Err() != nil:
		err = ctx.Err()
	case err != nil:
		err = w.classifyExit(err)
	case msg.Error != "":
		err = engine.ErrWorker(msg.Error)
	case msg.Event != "ready":
		err = fmt.Errorf("unexpected first message from worker: %+v", msg)
	}
	if err != nil {
		w.kill()
		_ = w.outR.Close()
		return nil, err
	}
	w.log.Debug().Str("event", "ready").Str("torch", msg.Torch).Msg("worker ready")
	return w, nil
}

// readMessage returns the next JSON line, skipping anything that is not JSON.
// On cancellation the worker is killed so the pending read unblocks.
func (w *worker) readMessage(ctx context.Context) (message, error) {
	for {
		ch := make(chan lineResult, 1)
		go func() {
			b, err := w.out.ReadBytes('\n')
			ch <- lineResult{line: b, err: err}
		}()
		var r lineResult
		select {
		case r = <-ch:
		case <-ctx.Done():
			w.kill()
			return message{}, ctx.Err()
		}
		line := bytes.TrimSpace(r.line)
		if len(line) > 0 {
			var m message
			if err := json.Unmarshal(line, &m); err == nil {
				return m, nil
			}
			w.log.Debug().Str("line", string(line)).Msg("skipping non-protocol output")
		}
		if r.err != nil {
			return message{}, r.err
		}
	}
}

// classifyExit turns an early EOF into a descriptive error.
func (w *worker) classifyExit(readErr error) error {
	select {
	case <-w.done:
	case <-time.After(w.grace):
		w.kill()
	}
	tail := w.stderr.String()
	w.log.Warn().Str("event", "exit_early").AnErr("wait", w.waitErr).Msg("worker exited")
	if strings.Contains(tail, "No module named 'torch'") {
		return engine.ErrDependencyUnavailable("torch is not installed for the configured python interpreter")
	}
	if w.waitErr != nil {
		return fmt.Errorf("worker exited: %v; stderr tail: %s", w.waitErr, tail)
	}
	return fmt.Errorf("worker closed its output: %v; stderr tail: %s", readErr, tail)
}

func (w *worker) predict(ctx context.Context, in tensor.List) (tensor.List, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.exited() {
		return nil, fmt.Errorf("worker is not running; stderr tail: %s", w.stderr.String())
	}
	b, err := json.Marshal(request{Inputs: in})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := w.stdin.Write(append(b, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	msg, err := w.readMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, w.classifyExit(err)
	}
	if msg.Error != "" {
		return nil, engine.ErrWorker(msg.Error)
	}
	if msg.Outputs == nil {
		return tensor.List{}, nil
	}
	return msg.Outputs, nil
}

func (w *worker) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// stop closes stdin so the worker leaves its request loop, then escalates to
// SIGTERM and kill if it does not exit within the grace period.
func (w *worker) stop() error {
	w.stopOnce.Do(func() {
		_ = w.stdin.Close()
		select {
		case <-w.done:
		case <-time.After(w.grace):
			_ = w.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-w.done:
			case <-time.After(w.grace):
				_ = w.cmd.Process.Kill()
				<-w.done
			}
		}
		_ = w.outR.Close()
		w.log.Debug().Str("event", "stop").Msg("worker stopped")
	})
	return nil
}

func (w *worker) kill() {
	if w.exited() {
		return
	}
	_ = w.cmd.Process.Kill()
	<-w.done
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
