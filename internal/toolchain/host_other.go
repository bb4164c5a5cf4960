//go:build !unix

package toolchain

func hostMachine() string {
	return goarchMachine()
}
