// =============================================================================
// translate.go - Alias Expansion (User Input → Server Commands)
// =============================================================================
//
// Lines typed at the REPL that are not dot-commands go to the server. Before
// they are sent, the first word is looked up in the alias table from the
// configuration file and, if found, replaced by its expansion.
//
// Expansion rules:
//   - $1 .. $9 are replaced by the corresponding argument of the typed line
//   - $* is replaced by all arguments
//   - if the expansion has no placeholder, the arguments are appended
//   - ";" in an expansion separates several commands, sent in order
//   - a line starting with "\" is sent verbatim without the backslash
//
// Examples (with aliases t: tell, gm: "tell $1 good move!", hi: "say hi;say gl"):
//
//	"t bob hello"   → ["tell bob hello"]
//	"gm bob"        → ["tell bob good move!"]
//	"hi"            → ["say hi", "say gl"]
//	"\t bob"        → ["t bob"]
//
// =============================================================================

package main

import (
	"strconv"
	"strings"
)

// verbatimPrefix disables alias expansion for one line.
const verbatimPrefix = `\`

// translateInput turns one typed line into the commands to send. Lines
// without a matching alias are returned unchanged as a single command.
func translateInput(line string, aliases map[string]string) []string {
	trimmed := strings.TrimSpace(line)

	if strings.HasPrefix(trimmed, verbatimPrefix) {
		return []string{strings.TrimPrefix(trimmed, verbatimPrefix)}
	}

	// GO CONCEPT: Comma-ok Map Lookup
	// -------------------------------
	// Indexing a map with "v, ok := m[k]" returns the zero value and
	// false for missing keys instead of panicking. A nil map can be read
	// this way too, so callers need not allocate an empty alias table.
	name, rest := splitCommand(trimmed)
	expansion, ok := aliases[strings.ToLower(name)]
	if !ok {
		return []string{trimmed}
	}

	args := strings.Fields(rest)
	var commands []string
	for _, part := range strings.Split(expansion, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		commands = append(commands, expandPlaceholders(part, args, rest))
	}
	if len(commands) == 0 {
		return []string{trimmed}
	}
	return commands
}

// splitCommand splits a line into its first word and the remainder.
func splitCommand(line string) (name, rest string) {
	parts := strings.SplitN(line, " ", 2)
	name = parts[0]
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return name, rest
}

// expandPlaceholders substitutes $1..$9 and $* in template. If template has
// no placeholder, rest is appended.
func expandPlaceholders(template string, args []string, rest string) string {
	if !strings.Contains(template, "$") {
		if rest == "" {
			return template
		}
		return template + " " + rest
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}
		next := template[i+1]
		switch {
		case next == '*':
			b.WriteString(rest)
			i++
		case next >= '1' && next <= '9':
			n, _ := strconv.Atoi(string(next))
			if n <= len(args) {
				b.WriteString(args[n-1])
			}
			i++
		default:
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}
