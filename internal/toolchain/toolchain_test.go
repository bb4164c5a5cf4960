package toolchain

import (
	"slices"
	"testing"

	"github.com/dfsbuild/cxxmk/internal/env"
)

func newToolchain(t *testing.T, assigns ...string) *Toolchain {
	t.Helper()
	cfg, err := env.Load(nil, assigns)
	if err != nil {
		t.Fatalf("env.Load() returned error: %v", err)
	}
	tc, err := New(cfg)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	return tc
}

func TestModeOf(t *testing.T) {
	tests := []struct {
		name    string
		assigns []string
		want    Mode
	}{
		{"default", nil, Release},
		{"debug", []string{"BEEGFS_DEBUG=1"}, Debug},
		{"debug opt", []string{"BEEGFS_DEBUG_OPT=1"}, Debug},
		{"coverage", []string{"BEEGFS_COVERAGE=1"}, Coverage},
		{"coverage wins", []string{"BEEGFS_DEBUG=1", "BEEGFS_COVERAGE=1"}, Coverage},
		{"disabled debug", []string{"BEEGFS_DEBUG=0"}, Release},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := env.Load(nil, tt.assigns)
			if err != nil {
				t.Fatal(err)
			}
			if got := ModeOf(cfg); got != tt.want {
				t.Errorf("ModeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModeFlags(t *testing.T) {
	t.Run("release", func(t *testing.T) {
		tc := newToolchain(t)
		if !slices.Contains(tc.CXXFlags(), "-O3") || slices.Contains(tc.CXXFlags(), "-DBEEGFS_DEBUG") {
			t.Errorf("release flags = %v", tc.CXXFlags())
		}
	})

	t.Run("debug", func(t *testing.T) {
		tc := newToolchain(t, "BEEGFS_DEBUG=1")
		flags := tc.CXXFlags()
		if !slices.Contains(flags, "-O0") || !slices.Contains(flags, "-DBEEGFS_DEBUG") {
			t.Errorf("debug flags = %v", flags)
		}
	})

	t.Run("debug opt", func(t *testing.T) {
		tc := newToolchain(t, "BEEGFS_DEBUG_OPT=1")
		flags := tc.CXXFlags()
		if !slices.Contains(flags, "-O2") || slices.Contains(flags, "-O0") {
			t.Errorf("debug opt flags = %v", flags)
		}
	})

	t.Run("coverage", func(t *testing.T) {
		tc := newToolchain(t, "BEEGFS_COVERAGE=1")
		if !slices.Contains(tc.CXXFlags(), "--coverage") {
			t.Errorf("coverage cxx flags = %v", tc.CXXFlags())
		}
		if !slices.Contains(tc.LDFlags(), "--coverage") {
			t.Errorf("coverage ld flags = %v", tc.LDFlags())
		}
	})

	t.Run("feature toggles", func(t *testing.T) {
		tc := newToolchain(t, "BEEGFS_DEBUG_IP=1", "BEEGFS_NVFS=1", "BEEGFS_DEBUG_RDMA=1")
		for _, want := range []string{"-DBEEGFS_DEBUG_IP", "-DBEEGFS_NVFS", "-DBEEGFS_DEBUG_RDMA"} {
			if !slices.Contains(tc.CXXFlags(), want) {
				t.Errorf("flags %v missing %s", tc.CXXFlags(), want)
			}
		}
	})
}

func TestFlagsAreCopies(t *testing.T) {
	tc := newToolchain(t)
	flags := tc.CXXFlags()
	flags[0] = "mutated"
	if tc.CXXFlags()[0] == "mutated" {
		t.Error("CXXFlags() exposes internal state")
	}
}

func TestVersion(t *testing.T) {
	tc := newToolchain(t, "BEEGFS_VERSION=7.4.2")
	if !slices.Contains(tc.CXXFlags(), `-DBEEGFS_VERSION="7.4.2"`) {
		t.Errorf("flags %v missing version define", tc.CXXFlags())
	}

	cfg, err := env.Load(nil, []string{"BEEGFS_VERSION=seven"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(cfg); err == nil {
		t.Error("New() accepted an invalid version")
	}
}

func TestCompilerWrapper(t *testing.T) {
	tc := newToolchain(t, "DISTCC=ccache distcc", "CXX=clang++")
	got := tc.Compiler()
	want := []string{"ccache", "distcc", "clang++"}
	if !slices.Equal(got, want) {
		t.Errorf("Compiler() = %v, want %v", got, want)
	}
}

func TestCrossPrefix(t *testing.T) {
	tests := []struct {
		target, host, want string
	}{
		{"", "x86_64", ""},
		{"x86_64", "x86_64", ""},
		{"amd64", "x86_64", ""},
		{"aarch64", "x86_64", "aarch64-linux-gnu-"},
		{"arm64", "x86_64", "aarch64-linux-gnu-"},
		{"x86_64", "aarch64", "x86_64-linux-gnu-"},
	}
	for _, tt := range tests {
		if got := crossPrefix(tt.target, tt.host); got != tt.want {
			t.Errorf("crossPrefix(%q, %q) = %q, want %q", tt.target, tt.host, got, tt.want)
		}
	}
}

func TestCrossTools(t *testing.T) {
	target := "aarch64"
	if normalizeArch(hostMachine()) == target {
		target = "x86_64"
	}
	tc := newToolchain(t, "TARGET_ARCH="+target)
	prefix := target + "-linux-gnu-"
	if tc.CXX != prefix+"g++" || tc.AR != prefix+"ar" || tc.Strip != prefix+"strip" {
		t.Errorf("cross tools = %q %q %q, want %s prefix", tc.CXX, tc.AR, tc.Strip, prefix)
	}

	tc = newToolchain(t, "TARGET_ARCH="+target, "CXX=my-g++")
	if tc.CXX != "my-g++" {
		t.Errorf("CXX override = %q, want my-g++", tc.CXX)
	}
}

func TestPaths(t *testing.T) {
	tc := newToolchain(t, "BEEGFS_COMMON_PATH=/src/common/", "BEEGFS_THIRDPARTY_PATH=/src/tp")
	if got, want := tc.CommonArchive(), "/src/common/build/libbeegfs-common.a"; got != want {
		t.Errorf("CommonArchive() = %q, want %q", got, want)
	}
	if got, want := tc.CommonHeader(), "/src/common/source/common/Common.h"; got != want {
		t.Errorf("CommonHeader() = %q, want %q", got, want)
	}
	if got, want := tc.TestArchive(), "/src/tp/build/libgtest.a"; got != want {
		t.Errorf("TestArchive() = %q, want %q", got, want)
	}
	if !slices.Contains(tc.CXXFlags(), "-I/src/common/source") {
		t.Errorf("flags %v missing common include", tc.CXXFlags())
	}
}
