// fake_worker stands in for the Python interpreter in tests. It accepts the
// same argv the engine passes to python and speaks the same line protocol.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type tensor struct {
	Name  string  `json:"name,omitempty"`
	DType string  `json:"dtype"`
	Shape []int64 `json:"shape"`
}

func main() {
	var model, device string
	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--model":
			if i+1 < len(args) {
				model = args[i+1]
				i++
			}
		case "--device":
			if i+1 < len(args) {
				device = args[i+1]
				i++
			}
		}
	}
	if model == "" {
		// gpu probe
		n := os.Getenv("FAKE_GPU_COUNT")
		if n == "" {
			n = "0"
		}
		fmt.Println("some banner")
		fmt.Println(n)
		return
	}

	switch os.Getenv("FAKE_WORKER_MODE") {
	case "exit":
		fmt.Fprintln(os.Stderr, "Traceback: failed to load", model)
		os.Exit(3)
	case "notorch":
		fmt.Fprintln(os.Stderr, "ModuleNotFoundError: No module named 'torch'")
		os.Exit(1)
	case "loaderr":
		emit(map[string]any{"error": "RuntimeError: bad archive"})
		return
	case "hang":
		time.Sleep(time.Minute)
		return
	}

	fmt.Println("loading on", device)
	emit(map[string]any{"event": "ready", "torch": "0.0-fake"})

	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	for sc.Scan() {
		var req struct {
			Inputs []tensor `json:"inputs"`
		}
		if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
			emit(map[string]any{"error": "bad request: " + err.Error()})
			continue
		}
		if len(req.Inputs) == 0 {
			emit(map[string]any{"error": "IndexError: no inputs"})
			continue
		}
		shape := append(append([]int64{}, req.Inputs[0].Shape...), 8)
		emit(map[string]any{"outputs": []tensor{{Name: "output_0", DType: "float32", Shape: shape}}})
	}
}

func emit(v any) {
	b, _ := json.Marshal(v)
	os.Stdout.Write(append(b, '\n'))
}
