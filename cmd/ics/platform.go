package main

import (
	"os"
	"os/user"
	"runtime"
	"strings"
)

// defaultUser is sent in the handshake when no user name can be found.
const defaultUser = "guest"

// currentUser returns the login name for the TimeSeal handshake.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		// Windows reports DOMAIN\user.
		if i := strings.LastIndexByte(u.Username, '\\'); i >= 0 {
			return u.Username[i+1:]
		}
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME", "LOGNAME"} {
		if name := os.Getenv(env); name != "" {
			return name
		}
	}
	return defaultUser
}

// fallbackPlatform describes the platform from the Go runtime alone.
func fallbackPlatform() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return runtime.GOOS + " " + runtime.GOARCH
	}
	return runtime.GOOS + " " + host + " " + runtime.GOARCH
}
