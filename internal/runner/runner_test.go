package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/dfsbuild/cxxmk/internal/graph"
	"github.com/google/go-cmp/cmp"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// age sets the modification time of path d into the past.
func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	mt := time.Now().Add(-d)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}

func add(t *testing.T, g *graph.Graph, n *graph.Node) {
	t.Helper()
	if _, err := g.Add(n); err != nil {
		t.Fatal(err)
	}
}

func runs(t *testing.T, dir string) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "runs.log"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "\n")
}

// copyGraph builds out.txt from in.txt and logs each run.
func copyGraph() *graph.Graph {
	g := graph.New()
	g.Add(&graph.Node{
		Kind:        graph.Compile,
		Outputs:     []string{"out/out.txt"},
		Inputs:      []string{"in.txt"},
		Args:        sh("echo run >> runs.log && cp in.txt out/out.txt"),
		Description: "COPY out/out.txt",
	})
	g.Phony("all", "out/out.txt")
	g.SetDefault("all")
	g.CleanFile("out/out.txt")
	return g
}

func TestBuildIncremental(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "v1")
	ctx := context.Background()

	var stdout bytes.Buffer
	r := New(copyGraph(), Options{Dir: dir, Stdout: &stdout})
	if err := r.Build(ctx); err != nil {
		t.Fatalf("Build() returned error: %v", err)
	}
	if got := readFile(t, filepath.Join(dir, "out/out.txt")); got != "v1" {
		t.Errorf("out.txt = %q, want v1", got)
	}
	if !strings.Contains(stdout.String(), "[1/1] COPY out/out.txt") {
		t.Errorf("status output = %q", stdout.String())
	}

	t.Run("up to date", func(t *testing.T) {
		if err := r.Build(ctx); err != nil {
			t.Fatal(err)
		}
		if n := runs(t, dir); n != 1 {
			t.Errorf("command ran %d times, want 1", n)
		}
	})

	t.Run("newer input", func(t *testing.T) {
		age(t, filepath.Join(dir, "out/out.txt"), time.Hour)
		writeFile(t, filepath.Join(dir, "in.txt"), "v2")
		if err := r.Build(ctx, "all"); err != nil {
			t.Fatal(err)
		}
		if n := runs(t, dir); n != 2 {
			t.Errorf("command ran %d times, want 2", n)
		}
		if got := readFile(t, filepath.Join(dir, "out/out.txt")); got != "v2" {
			t.Errorf("out.txt = %q, want v2", got)
		}
	})

	t.Run("always make", func(t *testing.T) {
		r := New(copyGraph(), Options{Dir: dir, Stdout: &stdout, AlwaysMake: true})
		if err := r.Build(ctx); err != nil {
			t.Fatal(err)
		}
		if n := runs(t, dir); n != 3 {
			t.Errorf("command ran %d times, want 3", n)
		}
	})
}

func TestBuildDepfile(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp"), "int a;")
	writeFile(t, filepath.Join(dir, "a.h"), "#pragma once")
	ctx := context.Background()

	g := graph.New()
	add(t, g, &graph.Node{
		Kind:    graph.Compile,
		Outputs: []string{"a.cpp.o"},
		Inputs:  []string{"a.cpp"},
		Args:    sh(`echo run >> runs.log && cat a.cpp a.h > a.cpp.o && printf 'a.cpp.o: a.cpp \\\n a.h\n' > a.cpp.o.d`),
		Depfile: "a.cpp.o.d",
	})

	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}})
	if err := r.Build(ctx, "a.cpp.o"); err != nil {
		t.Fatal(err)
	}
	age(t, filepath.Join(dir, "a.cpp.o"), time.Hour)
	age(t, filepath.Join(dir, "a.cpp"), 2*time.Hour)
	age(t, filepath.Join(dir, "a.h"), 2*time.Hour)
	if err := r.Build(ctx, "a.cpp.o"); err != nil {
		t.Fatal(err)
	}
	if n := runs(t, dir); n != 1 {
		t.Fatalf("command ran %d times, want 1", n)
	}

	// A header only named in the dependency file makes the object stale.
	writeFile(t, filepath.Join(dir, "a.h"), "#pragma once\nint b;")
	if err := r.Build(ctx, "a.cpp.o"); err != nil {
		t.Fatal(err)
	}
	if n := runs(t, dir); n != 2 {
		t.Errorf("command ran %d times after header change, want 2", n)
	}

	// A missing dependency file forces a rebuild.
	age(t, filepath.Join(dir, "a.cpp.o"), time.Minute)
	age(t, filepath.Join(dir, "a.h"), time.Hour)
	if err := os.Remove(filepath.Join(dir, "a.cpp.o.d")); err != nil {
		t.Fatal(err)
	}
	if err := r.Build(ctx, "a.cpp.o"); err != nil {
		t.Fatal(err)
	}
	if n := runs(t, dir); n != 3 {
		t.Errorf("command ran %d times without dependency file, want 3", n)
	}
}

func TestBuildFailureRemovesOutput(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "x")

	g := graph.New()
	add(t, g, &graph.Node{
		Kind:    graph.Link,
		Outputs: []string{"app"},
		Inputs:  []string{"in.txt"},
		Args:    sh("echo partial > app; echo 'undefined reference' >&2; exit 1"),
	})
	add(t, g, &graph.Node{
		Kind:    graph.Link,
		Outputs: []string{"later"},
		Inputs:  []string{"app"},
		Args:    sh("touch later"),
	})

	var stderr bytes.Buffer
	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &stderr})
	err := r.Build(context.Background(), "later")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Build() = %v, want *CommandError", err)
	}
	if cmdErr.Node.Outputs[0] != "app" {
		t.Errorf("failed node = %s, want app", cmdErr.Node.Outputs[0])
	}
	if !strings.Contains(string(cmdErr.Output), "undefined reference") {
		t.Errorf("captured output = %q", cmdErr.Output)
	}
	if !strings.Contains(stderr.String(), "undefined reference") {
		t.Errorf("stderr = %q", stderr.String())
	}
	for _, f := range []string{"app", "later"} {
		if _, err := os.Stat(filepath.Join(dir, f)); !os.IsNotExist(err) {
			t.Errorf("%s exists after failed build", f)
		}
	}
}

func TestBuildDryRun(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "v1")

	g := copyGraph()
	add(t, g, &graph.Node{
		Kind:    graph.Archive,
		Outputs: []string{"libx.a"},
		Inputs:  []string{"out/out.txt"},
		Args:    []string{"ar", "rcs", "libx.a", "out/out.txt"},
	})

	var stdout bytes.Buffer
	r := New(g, Options{Dir: dir, Stdout: &stdout, DryRun: true})
	if err := r.Build(context.Background(), "libx.a"); err != nil {
		t.Fatal(err)
	}
	want := "/bin/sh -c 'echo run >> runs.log && cp in.txt out/out.txt'\nar rcs libx.a out/out.txt\n"
	if diff := cmp.Diff(want, stdout.String()); diff != "" {
		t.Errorf("dry run output mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("dry run created files")
	}
}

func TestBuildWriteNode(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	add(t, g, &graph.Node{
		Kind:    graph.Write,
		Outputs: []string{"gen/pch.h"},
		Content: "#include \"common/Common.h\"\n",
	})
	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}})
	ctx := context.Background()

	if err := r.Build(ctx, "gen/pch.h"); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "gen/pch.h")
	if got := readFile(t, path); got != "#include \"common/Common.h\"\n" {
		t.Errorf("pch.h = %q", got)
	}

	age(t, path, time.Hour)
	before, _ := os.Stat(path)
	if err := r.Build(ctx, "gen/pch.h"); err != nil {
		t.Fatal(err)
	}
	after, _ := os.Stat(path)
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("unchanged content was rewritten")
	}

	writeFile(t, path, "stale")
	if err := r.Build(ctx, "gen/pch.h"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, path); got != "#include \"common/Common.h\"\n" {
		t.Errorf("pch.h = %q after content change", got)
	}
}

func TestBuildOrderOnly(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in.txt"), "x")

	g := graph.New()
	add(t, g, &graph.Node{
		Kind:    graph.Link,
		Outputs: []string{"libplugin.so"},
		Inputs:  []string{"in.txt"},
		Args:    sh("echo plugin >> order.log && touch libplugin.so"),
	})
	add(t, g, &graph.Node{
		Kind:      graph.Link,
		Outputs:   []string{"host"},
		Inputs:    []string{"in.txt"},
		OrderOnly: []string{"libplugin.so"},
		Args:      sh("echo host >> order.log && touch host"),
	})

	r := New(g, Options{Dir: dir, Jobs: 4, Stdout: &bytes.Buffer{}})
	ctx := context.Background()
	if err := r.Build(ctx, "host"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "order.log")); got != "plugin\nhost\n" {
		t.Errorf("run order = %q", got)
	}

	// Rebuilding the ordering prerequisite does not relink host.
	age(t, filepath.Join(dir, "host"), time.Minute)
	age(t, filepath.Join(dir, "in.txt"), time.Hour)
	if err := os.Remove(filepath.Join(dir, "libplugin.so")); err != nil {
		t.Fatal(err)
	}
	if err := r.Build(ctx, "host"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "order.log")); got != "plugin\nhost\nplugin\n" {
		t.Errorf("run order = %q", got)
	}
}

func TestBuildDiamond(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()

	g := graph.New()
	add(t, g, &graph.Node{Kind: graph.Compile, Outputs: []string{"base"}, Args: sh("echo base >> runs.log && touch base")})
	add(t, g, &graph.Node{Kind: graph.Compile, Outputs: []string{"left"}, Inputs: []string{"base"}, Args: sh("echo left >> runs.log && touch left")})
	add(t, g, &graph.Node{Kind: graph.Compile, Outputs: []string{"right"}, Inputs: []string{"base"}, Args: sh("echo right >> runs.log && touch right")})
	add(t, g, &graph.Node{Kind: graph.Link, Outputs: []string{"top"}, Inputs: []string{"left", "right"}, Args: sh("echo top >> runs.log && touch top")})

	r := New(g, Options{Dir: dir, Jobs: 8, Stdout: &bytes.Buffer{}})
	if err := r.Build(context.Background(), "top"); err != nil {
		t.Fatal(err)
	}
	lines := strings.Fields(readFile(t, filepath.Join(dir, "runs.log")))
	if len(lines) != 4 || lines[0] != "base" || lines[3] != "top" {
		t.Errorf("run order = %v", lines)
	}
}

func TestBuildAlwaysNodes(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp"), "")

	g := graph.New()
	add(t, g, &graph.Node{
		Kind:    graph.Analyze,
		Outputs: []string{"a.cpp.tidy-x"},
		Inputs:  []string{"a.cpp"},
		Args:    sh("echo run >> runs.log"),
		Always:  true,
	})
	g.Phony("tidy-x", "a.cpp.tidy-x")

	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}})
	for i := 0; i < 2; i++ {
		if err := r.Build(context.Background(), "tidy-x"); err != nil {
			t.Fatal(err)
		}
	}
	if n := runs(t, dir); n != 2 {
		t.Errorf("analysis ran %d times, want 2", n)
	}
}

func TestPlanErrors(t *testing.T) {
	dir := t.TempDir()
	g := graph.New()
	add(t, g, &graph.Node{Kind: graph.Compile, Outputs: []string{"a.o"}, Inputs: []string{"missing.cpp"}, Args: []string{"true"}})
	add(t, g, &graph.Node{Kind: graph.Link, Outputs: []string{"x"}, Inputs: []string{"y"}, Args: []string{"true"}})
	add(t, g, &graph.Node{Kind: graph.Link, Outputs: []string{"y"}, Inputs: []string{"x"}, Args: []string{"true"}})
	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}})
	ctx := context.Background()

	if err := r.Build(ctx, "nope"); !errors.Is(err, ErrUnknownGoal) {
		t.Errorf("Build(nope) = %v, want ErrUnknownGoal", err)
	}
	if err := r.Build(ctx, "a.o"); err == nil || !strings.Contains(err.Error(), "missing.cpp") {
		t.Errorf("Build(a.o) = %v, want missing input error", err)
	}
	if err := r.Build(ctx, "x"); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Build(x) = %v, want cycle error", err)
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.cpp.o"), "")
	writeFile(t, filepath.Join(dir, "libbar.a"), "")
	writeFile(t, filepath.Join(dir, "a.cpp"), "")

	g := graph.New()
	g.CleanFile("a.cpp.o", "a.cpp.o.d", "libbar.a")

	var stdout bytes.Buffer
	dry := New(g, Options{Dir: dir, Stdout: &stdout, DryRun: true})
	if err := dry.Clean(context.Background()); err != nil {
		t.Fatal(err)
	}
	if want := "rm -f a.cpp.o\nrm -f a.cpp.o.d\nrm -f libbar.a\n"; stdout.String() != want {
		t.Errorf("dry clean output = %q, want %q", stdout.String(), want)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.cpp.o")); err != nil {
		t.Error("dry clean removed files")
	}

	r := New(g, Options{Dir: dir, Stdout: &bytes.Buffer{}})
	if err := r.Clean(context.Background()); err != nil {
		t.Fatalf("Clean() returned error: %v", err)
	}
	for _, f := range []string{"a.cpp.o", "libbar.a"} {
		if _, err := os.Stat(filepath.Join(dir, f)); !os.IsNotExist(err) {
			t.Errorf("%s survived clean", f)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "a.cpp")); err != nil {
		t.Error("clean removed a source file")
	}
}
