package build

import (
	"github.com/dfsbuild/cxxmk/internal/registry"
	"github.com/dfsbuild/cxxmk/internal/toolchain"
)

// CommonLibrary is the library name under which the prebuilt common archive
// is registered.
const CommonLibrary = "common"

// DefineCommon registers the common library archive of tc in reg.
func DefineCommon(reg *registry.Registry, tc *toolchain.Toolchain) error {
	return reg.Define(CommonLibrary, registry.Library{
		StaticDeps: []string{tc.CommonArchive()},
	})
}
