package runner

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/dfsbuild/cxxmk/internal/graph"
)

// outdated returns why n must run, or "" if it is up to date.
func (r *Runner) outdated(p *plan, n *graph.Node) (string, error) {
	// Order-only prerequisites never make a node stale.
	deps := append(append([]string(nil), n.Inputs...), n.Implicits...)

	for _, dep := range deps {
		if d, ok := r.g.Producer(dep); ok && p.isDirty(d) {
			return fmt.Sprintf("%s was rebuilt", dep), nil
		}
	}
	switch {
	case n.Kind == graph.Phony:
		return "", nil
	case r.opts.AlwaysMake:
		return "always make", nil
	case n.Always:
		return "always run", nil
	case n.Kind == graph.Write:
		data, err := os.ReadFile(r.path(n.Outputs[0]))
		if err != nil || !bytes.Equal(data, []byte(n.Content)) {
			return "content changed", nil
		}
		return "", nil
	}

	var oldest time.Time
	for i, out := range n.Outputs {
		fi, err := os.Stat(r.path(out))
		if err != nil {
			return fmt.Sprintf("%s is missing", out), nil
		}
		if i == 0 || fi.ModTime().Before(oldest) {
			oldest = fi.ModTime()
		}
	}

	for _, dep := range deps {
		if d, ok := r.g.Producer(dep); ok && (d.Kind == graph.Phony || d.Always) {
			continue
		}
		if reason := newer(r.path(dep), dep, oldest); reason != "" {
			return reason, nil
		}
	}

	if n.Depfile != "" {
		headers, err := readDepfile(r.path(n.Depfile))
		if err != nil {
			return fmt.Sprintf("dependency file %s unusable: %v", n.Depfile, err), nil
		}
		for _, h := range headers {
			if reason := newer(r.path(h), h, oldest); reason != "" {
				return reason, nil
			}
		}
	}
	return "", nil
}

func newer(path, name string, than time.Time) string {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("%s is missing", name)
	}
	if fi.ModTime().After(than) {
		return fmt.Sprintf("%s is newer", name)
	}
	return ""
}

func (p *plan) isDirty(n *graph.Node) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty[n]
}
