package build

import (
	"fmt"
	"path/filepath"
	"slices"
)

// Kind is the type of output an artifact produces.
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
	TestExecutable
)

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticLibrary:
		return "static library"
	case SharedLibrary:
		return "shared library"
	case TestExecutable:
		return "test"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Artifact is a declared build output.
type Artifact struct {
	Name        string
	Kind        Kind
	Sources     []string
	Libraries   []string
	IncludeDirs []string

	after []string
}

// Output returns the file the artifact produces in the build directory.
func (a *Artifact) Output() string {
	switch a.Kind {
	case StaticLibrary:
		return "lib" + a.Name + ".a"
	case SharedLibrary:
		return "lib" + a.Name + ".so"
	}
	return a.Name
}

// After returns the explicit ordering prerequisites.
func (a *Artifact) After() []string {
	return slices.Clone(a.after)
}

// Object returns the object file compiled from src. Shared library objects
// are position independent and use a separate name so the same source can
// also be compiled for a non-PIC artifact.
func (a *Artifact) Object(src string) string {
	src = filepath.Clean(src)
	if a.Kind == SharedLibrary {
		return src + ".pic.o"
	}
	return src + ".o"
}
