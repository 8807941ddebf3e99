// =============================================================================
// translate_test.go - Tests for Alias Expansion (translate.go)
// =============================================================================

package main

import (
	"reflect"
	"testing"
)

var testAliases = map[string]string{
	"t":    "tell",
	"gm":   "tell $1 good move!",
	"hi":   "say hi;say gl",
	"m":    "match $1 $2 $3",
	"all":  "tell $1 $*",
	"cost": "say it costs $5",
	"nop":  " ; ",
}

func TestTranslateInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"no alias", "who", []string{"who"}},
		{"no alias with args", "finger bob", []string{"finger bob"}},
		{"trims input", "  who  ", []string{"who"}},
		{"append args", "t bob hello there", []string{"tell bob hello there"}},
		{"append nothing", "t", []string{"tell"}},
		{"positional", "gm alice", []string{"tell alice good move!"}},
		{"positional extra args dropped", "gm alice bob", []string{"tell alice good move!"}},
		{"missing positional", "m bob 5", []string{"match bob 5"}},
		{"all args", "all bob hello there", []string{"tell bob bob hello there"}},
		{"multiple commands", "hi", []string{"say hi", "say gl"}},
		{"multiple commands append", "hi everyone", []string{"say hi everyone", "say gl everyone"}},
		{"case-insensitive name", "GM alice", []string{"tell alice good move!"}},
		{"verbatim", `\t bob`, []string{"t bob"}},
		{"verbatim no alias", `\who`, []string{"who"}},
		{"empty expansion", "nop x", []string{"nop x"}},
		{"lone dollar", "cost", []string{"say it costs"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := translateInput(tc.input, testAliases)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("translateInput(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestTranslateInputNilAliases(t *testing.T) {
	got := translateInput("t bob hi", nil)
	if !reflect.DeepEqual(got, []string{"t bob hi"}) {
		t.Errorf("translateInput with nil aliases = %q", got)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, name, rest string
	}{
		{"who", "who", ""},
		{"tell bob hi", "tell", "bob hi"},
		{".help  secret ", ".help", "secret"},
		{"", "", ""},
	}

	for _, tc := range tests {
		name, rest := splitCommand(tc.line)
		if name != tc.name || rest != tc.rest {
			t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)",
				tc.line, name, rest, tc.name, tc.rest)
		}
	}
}

func TestExpandPlaceholders(t *testing.T) {
	tests := []struct {
		template string
		args     []string
		rest     string
		want     string
	}{
		{"tell $1 hi", []string{"bob"}, "bob", "tell bob hi"},
		{"$2 $1", []string{"a", "b"}, "a b", "b a"},
		{"say $*", []string{"a", "b"}, "a b", "say a b"},
		{"say 100$", nil, "", "say 100$"},
		{"say $x", nil, "", "say $x"},
		{"tell", []string{"bob"}, "bob", "tell bob"},
	}

	for _, tc := range tests {
		if got := expandPlaceholders(tc.template, tc.args, tc.rest); got != tc.want {
			t.Errorf("expandPlaceholders(%q, %q) = %q, want %q", tc.template, tc.args, got, tc.want)
		}
	}
}
