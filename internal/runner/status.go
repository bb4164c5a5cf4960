package runner

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/mattn/go-isatty"
)

// status prints progress lines. On a terminal the short descriptions
// overwrite each other; elsewhere every line is kept.
type status struct {
	w       io.Writer
	full    bool
	smart   bool
	total   int
	mu      sync.Mutex
	ran     int
	pending bool // a line without trailing newline is on screen
}

func newStatus(w io.Writer, full bool) *status {
	s := &status{w: w, full: full}
	if f, ok := w.(*os.File); ok && !full {
		s.smart = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return s
}

func (s *status) start(n *graph.Node, command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran++
	if s.full {
		fmt.Fprintln(s.w, command)
		return
	}
	desc := n.Description
	if desc == "" {
		desc = n.Kind.String() + " " + n.Outputs[0]
	}
	line := fmt.Sprintf("[%d/%d] %s", s.ran, s.total, desc)
	if s.smart {
		fmt.Fprintf(s.w, "\r%s\x1b[K", line)
		s.pending = true
		return
	}
	fmt.Fprintln(s.w, line)
}

// output prints captured command output, keeping it apart from the
// progress line.
func (s *status) output(w io.Writer, out []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		fmt.Fprintln(s.w)
		s.pending = false
	}
	w.Write(out)
}

func (s *status) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		fmt.Fprintln(s.w)
		s.pending = false
	}
}
