// Package toolchain turns configuration variables into the global build
// mode, tool names and flag sets shared by every compile and link step.
package toolchain

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dfsbuild/cxxmk/internal/env"
	"golang.org/x/mod/semver"
)

// Mode is the process-wide build mode. Exactly one mode is active per run.
type Mode int

const (
	Release Mode = iota
	Debug
	Coverage
)

func (m Mode) String() string {
	switch m {
	case Release:
		return "release"
	case Debug:
		return "debug"
	case Coverage:
		return "coverage"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

var (
	commonCXXFlags = []string{
		"-std=c++17",
		"-pthread",
		"-Wall",
		"-Wextra",
		"-Wno-unused-parameter",
		"-Wno-missing-field-initializers",
		"-Wunused-variable",
		"-Woverloaded-virtual",
		"-Wuninitialized",
		"-fno-strict-aliasing",
		"-fmessage-length=0",
		"-ggdb",
		"-D_GNU_SOURCE",
		"-D_FILE_OFFSET_BITS=64",
		"-D_LARGEFILE64_SOURCE",
	}
	commonLDFlags = []string{
		"-rdynamic",
		"-pthread",
	}
)

// Toolchain is the fully resolved tool and flag configuration. It is
// computed once and never mutated; accessors return copies.
type Toolchain struct {
	Mode Mode

	CXX     string
	AR      string
	Strip   string
	Tidy    string
	Wrapper []string

	CommonPath     string
	ThirdpartyPath string
	PCH            bool
	Verbose        bool
	Version        string

	cxxFlags []string
	ldFlags  []string
}

// ModeOf selects the build mode. Coverage wins over debug, debug over release.
func ModeOf(cfg *env.Config) Mode {
	switch {
	case bool(cfg.Coverage):
		return Coverage
	case bool(cfg.Debug), bool(cfg.DebugOpt):
		return Debug
	}
	return Release
}

// New derives the toolchain from cfg.
func New(cfg *env.Config) (*Toolchain, error) {
	t := &Toolchain{
		Mode:           ModeOf(cfg),
		Tidy:           "clang-tidy",
		Wrapper:        strings.Fields(cfg.Distcc),
		CommonPath:     filepath.Clean(cfg.CommonPath),
		ThirdpartyPath: filepath.Clean(cfg.ThirdpartyPath),
		PCH:            bool(cfg.UsePCH),
		Verbose:        bool(cfg.Verbose),
		Version:        cfg.Version,
	}

	prefix := crossPrefix(cfg.TargetArch, hostMachine())
	t.CXX = prefix + "g++"
	if cfg.CXX != "" {
		t.CXX = cfg.CXX
	}
	t.AR = prefix + "ar"
	t.Strip = prefix + "strip"

	if t.Version != "" {
		v := t.Version
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return nil, fmt.Errorf("invalid %s %q: not a semantic version", env.Version, t.Version)
		}
	}

	t.cxxFlags = slices.Clone(commonCXXFlags)
	t.ldFlags = slices.Clone(commonLDFlags)

	switch t.Mode {
	case Coverage:
		t.cxxFlags = append(t.cxxFlags, "-O0", "--coverage", "-DBEEGFS_DEBUG")
		t.ldFlags = append(t.ldFlags, "--coverage")
	case Debug:
		if cfg.DebugOpt {
			t.cxxFlags = append(t.cxxFlags, "-O2")
		} else {
			t.cxxFlags = append(t.cxxFlags, "-O0")
		}
		t.cxxFlags = append(t.cxxFlags, "-DBEEGFS_DEBUG")
	default:
		t.cxxFlags = append(t.cxxFlags, "-O3", "-DNDEBUG")
	}

	if cfg.DebugIP {
		t.cxxFlags = append(t.cxxFlags, "-DBEEGFS_DEBUG_IP")
	}
	if cfg.DebugRDMA {
		t.cxxFlags = append(t.cxxFlags, "-DBEEGFS_DEBUG_RDMA")
	}
	if cfg.NVFS {
		t.cxxFlags = append(t.cxxFlags, "-DBEEGFS_NVFS")
	}
	if t.Version != "" {
		t.cxxFlags = append(t.cxxFlags, fmt.Sprintf("-DBEEGFS_VERSION=%q", t.Version))
	}

	t.cxxFlags = append(t.cxxFlags,
		"-I"+filepath.Join(t.CommonPath, "source"),
		"-isystem", filepath.Join(t.ThirdpartyPath, "source"),
	)
	return t, nil
}

// CXXFlags returns the mode flags applied to every compile step.
func (t *Toolchain) CXXFlags() []string {
	return slices.Clone(t.cxxFlags)
}

// LDFlags returns the mode flags applied to every link step.
func (t *Toolchain) LDFlags() []string {
	return slices.Clone(t.ldFlags)
}

// Compiler returns the compiler invocation prefix, including the
// distributed-compilation wrapper if one is configured.
func (t *Toolchain) Compiler() []string {
	return append(slices.Clone(t.Wrapper), t.CXX)
}

// CommonArchive is the prebuilt static archive of the common library.
func (t *Toolchain) CommonArchive() string {
	return filepath.Join(t.CommonPath, "build", "libbeegfs-common.a")
}

// CommonHeader is the canonical header precompiled when PCH is enabled.
func (t *Toolchain) CommonHeader() string {
	return filepath.Join(t.CommonPath, "source", "common", "Common.h")
}

// TestArchive is the prebuilt unit-test framework archive.
func (t *Toolchain) TestArchive() string {
	return filepath.Join(t.ThirdpartyPath, "build", "libgtest.a")
}

// TestInclude is the include root of the unit-test framework.
func (t *Toolchain) TestInclude() string {
	return filepath.Join(t.ThirdpartyPath, "source", "gtest", "googletest", "include")
}

// crossPrefix returns the tool name prefix for target, or "" when target is
// empty or names the host machine.
func crossPrefix(target, host string) string {
	target = normalizeArch(target)
	if target == "" || target == normalizeArch(host) {
		return ""
	}
	return target + "-linux-gnu-"
}

func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386", "i686":
		return "i386"
	case "ppc64le":
		return "powerpc64le"
	}
	return arch
}

func goarchMachine() string {
	return normalizeArch(runtime.GOARCH)
}
