// Package env reads the configuration variables of a run from the process
// environment and from VAR=value command line assignments.
package env

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	cenv "github.com/caarlos0/env/v11"
)

// Var describes a configuration variable recognized by cxxmk.
type Var struct {
	Name string
	Help string
}

// Configuration variables, in the order they are listed by "cxxmk help".
const (
	Debug          = "BEEGFS_DEBUG"
	DebugOpt       = "BEEGFS_DEBUG_OPT"
	DebugIP        = "BEEGFS_DEBUG_IP"
	CXX            = "CXX"
	Distcc         = "DISTCC"
	Verbose        = "V"
	CommonPath     = "BEEGFS_COMMON_PATH"
	ThirdpartyPath = "BEEGFS_THIRDPARTY_PATH"
	UsePCH         = "USE_PCH"
	TargetArch     = "TARGET_ARCH"
	Coverage       = "BEEGFS_COVERAGE"
	NVFS           = "BEEGFS_NVFS"
	DebugRDMA      = "BEEGFS_DEBUG_RDMA"
	Version        = "BEEGFS_VERSION"
)

var Vars = []Var{
	{Name: Debug, Help: "build with debug information and without optimization"},
	{Name: DebugOpt, Help: "debug build with optimization enabled"},
	{Name: DebugIP, Help: "enable low-level network debug messages"},
	{Name: CXX, Help: "C++ compiler to use (default g++, cross-prefixed for TARGET_ARCH)"},
	{Name: Distcc, Help: "wrapper command prepended to compiler invocations"},
	{Name: Verbose, Help: "print full commands instead of short descriptions"},
	{Name: CommonPath, Help: "path to the common library tree"},
	{Name: ThirdpartyPath, Help: "path to the vendored third-party tree"},
	{Name: UsePCH, Help: "compile all sources with a shared precompiled header"},
	{Name: TargetArch, Help: "target architecture; switches compiler, ar and strip to cross tools"},
	{Name: Coverage, Help: "build with coverage instrumentation"},
	{Name: NVFS, Help: "enable NVFS support"},
	{Name: DebugRDMA, Help: "enable RDMA debug messages"},
	{Name: Version, Help: "version string compiled into all binaries"},
}

// Lookup returns the definition of a recognized variable.
func Lookup(name string) (Var, bool) {
	i := slices.IndexFunc(Vars, func(v Var) bool { return v.Name == name })
	if i < 0 {
		return Var{}, false
	}
	return Vars[i], true
}

// Toggle is a boolean variable. Empty, "0", "no", "false" and "off" are
// false; anything else is true.
type Toggle bool

func parseToggle(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "no", "false", "off":
		return Toggle(false), nil
	}
	return Toggle(true), nil
}

// Config holds the values of the configuration variables for one run.
// It is populated once before any artifact is declared and read-only after.
type Config struct {
	Debug          Toggle `env:"BEEGFS_DEBUG"`
	DebugOpt       Toggle `env:"BEEGFS_DEBUG_OPT"`
	DebugIP        Toggle `env:"BEEGFS_DEBUG_IP"`
	CXX            string `env:"CXX"`
	Distcc         string `env:"DISTCC"`
	Verbose        Toggle `env:"V"`
	CommonPath     string `env:"BEEGFS_COMMON_PATH" envDefault:"../../common"`
	ThirdpartyPath string `env:"BEEGFS_THIRDPARTY_PATH" envDefault:"../../thirdparty"`
	UsePCH         Toggle `env:"USE_PCH"`
	TargetArch     string `env:"TARGET_ARCH"`
	Coverage       Toggle `env:"BEEGFS_COVERAGE"`
	NVFS           Toggle `env:"BEEGFS_NVFS"`
	DebugRDMA      Toggle `env:"BEEGFS_DEBUG_RDMA"`
	Version        string `env:"BEEGFS_VERSION"`
}

// Load builds a Config from environment entries ("KEY=value") followed by
// command line assignments, which take precedence. Only recognized
// variables are kept, and an empty value counts as unset.
func Load(environ []string, assignments []string) (*Config, error) {
	values := make(map[string]string)
	set := func(k, v string) {
		if v == "" {
			delete(values, k)
			return
		}
		values[k] = v
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, known := Lookup(k); known {
			set(k, v)
		}
	}
	for _, kv := range assignments {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed assignment %q", kv)
		}
		if _, known := Lookup(k); !known {
			return nil, fmt.Errorf("unknown configuration variable %q", k)
		}
		set(k, v)
	}

	c := new(Config)
	err := cenv.ParseWithOptions(c, cenv.Options{
		Environment: values,
		FuncMap: map[reflect.Type]cenv.ParserFunc{
			reflect.TypeOf(Toggle(false)): parseToggle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return c, nil
}

// FromOS loads the configuration from the process environment.
func FromOS(assignments []string) (*Config, error) {
	return Load(os.Environ(), assignments)
}

// Get returns the value of the variable name as text: strings verbatim,
// toggles as "1" or "".
func (c *Config) Get(name string) string {
	v := reflect.ValueOf(c).Elem()
	for i := 0; i < v.NumField(); i++ {
		if v.Type().Field(i).Tag.Get("env") != name {
			continue
		}
		switch f := v.Field(i).Interface().(type) {
		case Toggle:
			if f {
				return "1"
			}
			return ""
		case string:
			return f
		}
	}
	return ""
}

// SplitArgs separates goal names from VAR=value assignments.
func SplitArgs(args []string) (goals, assignments []string) {
	for _, arg := range args {
		if k, _, ok := strings.Cut(arg, "="); ok && k != "" && !strings.ContainsAny(k, "/.") {
			assignments = append(assignments, arg)
			continue
		}
		goals = append(goals, arg)
	}
	return
}
