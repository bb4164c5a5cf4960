// Command cxxmk builds C++ executables, libraries and tests of one source
// directory against the shared common library and third-party tree.
package main

import "github.com/dfsbuild/cxxmk/cmd/cxxmk/internal"

func main() {
	internal.Execute()
}
