//go:build unix

package main

import (
	"strings"

	"golang.org/x/sys/unix"
)

// platformString returns the uname fields joined by spaces, e.g.
// "Linux gruber 6.1.0 #1 SMP PREEMPT_DYNAMIC x86_64".
func platformString() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return fallbackPlatform()
	}
	fields := []string{
		unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Nodename[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Version[:]),
		unix.ByteSliceToString(u.Machine[:]),
	}
	return strings.Join(fields, " ")
}
