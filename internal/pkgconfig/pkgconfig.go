// Package pkgconfig queries installed system packages through the
// pkg-config command line tool.
package pkgconfig

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/qiniu/x/log"
)

// Tool runs a pkg-config compatible binary.
type Tool struct {
	// Path is the binary to run; "pkg-config" when empty.
	Path string
	// Env is appended to the process environment (e.g. PKG_CONFIG_PATH=...).
	Env []string
}

// New returns a Tool using the pkg-config binary found in PATH.
func New() *Tool {
	return &Tool{}
}

func (t *Tool) path() string {
	if t.Path != "" {
		return t.Path
	}
	return "pkg-config"
}

// Exists reports whether pkg is installed. A missing pkg-config binary is an
// error, not a missing package.
func (t *Tool) Exists(ctx context.Context, pkg string) (bool, error) {
	_, err := t.run(ctx, "--exists", pkg)
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// CFlags returns the compile flags of pkg.
func (t *Tool) CFlags(ctx context.Context, pkg string) ([]string, error) {
	out, err := t.run(ctx, "--cflags", pkg)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// Libs returns the link flags of pkg.
func (t *Tool) Libs(ctx context.Context, pkg string) ([]string, error) {
	out, err := t.run(ctx, "--libs", pkg)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

func (t *Tool) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, t.path(), args...)
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debugf("pkgconfig: %s %s", t.path(), strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s %s: %w: %s", t.path(), strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%s: %w", t.path(), err)
	}
	return stdout.String(), nil
}
