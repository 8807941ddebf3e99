//go:build !unix

package main

func platformString() string {
	return fallbackPlatform()
}
