package main

import (
	"strings"
	"testing"
)

func TestCurrentUser(t *testing.T) {
	name := currentUser()
	if name == "" {
		t.Fatal("currentUser() returned an empty name")
	}
	if strings.Contains(name, `\`) {
		t.Errorf("currentUser() = %q, want the domain prefix stripped", name)
	}
}

func TestPlatformString(t *testing.T) {
	p := platformString()
	if strings.TrimSpace(p) == "" {
		t.Fatal("platformString() returned nothing")
	}
	if strings.ContainsAny(p, "\x00\n") {
		t.Errorf("platformString() = %q contains NUL or newline", p)
	}
}

func TestFallbackPlatform(t *testing.T) {
	if p := fallbackPlatform(); len(strings.Fields(p)) < 2 {
		t.Errorf("fallbackPlatform() = %q, want at least OS and architecture", p)
	}
}
