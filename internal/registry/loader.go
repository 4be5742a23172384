package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inferdemo/internal/common/fsutil"
)

// Model is an artifact found under the models root.
type Model struct {
	// Name is what --model-name= expects.
	Name string
	// Path is the absolute artifact path.
	Path string
	// Nested is true for the <root>/<name>/<name><ext> layout.
	Nested bool
}

// LoadDir scans root for artifacts with extension ext (case-insensitive). A
// subdirectory <name> counts when it holds <name><ext>; a loose <name><ext>
// file at the top level counts too. Results follow directory order.
func LoadDir(root, ext string) ([]Model, error) {
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			p := filepath.Join(abs, name, name+ext)
			if fsutil.IsRegularFile(p) {
				models = append(models, Model{Name: name, Path: p, Nested: true})
			}
			continue
		}
		if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
			continue
		}
		models = append(models, Model{Name: name[:len(name)-len(ext)], Path: filepath.Join(abs, name)})
	}
	return models, nil
}

// Names lists model names in order.
func Names(models []Model) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = m.Name
	}
	return out
}
