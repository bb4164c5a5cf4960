//go:build unix

package toolchain

import "golang.org/x/sys/unix"

// hostMachine returns the machine name reported by uname(2).
func hostMachine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return goarchMachine()
	}
	return unix.ByteSliceToString(u.Machine[:])
}
