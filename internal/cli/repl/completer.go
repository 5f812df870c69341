package repl

import (
	"sort"
	"strings"
)

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "quit", "history"}

// Completer suggests commands and resource names.
type Completer struct {
	commands []string
	roots    map[string]bool
}

// NewCompleter creates a Completer over the given command lines, such as
// "list", "config show" or "list products".
func NewCompleter(commands []string) *Completer {
	c := &Completer{roots: make(map[string]bool)}
	seen := make(map[string]bool)
	for _, cmd := range append(append([]string(nil), commands...), builtins...) {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" || seen[cmd] {
			continue
		}
		seen[cmd] = true
		c.commands = append(c.commands, cmd)
		root, _, _ := strings.Cut(cmd, " ")
		c.roots[root] = true
	}
	sort.Strings(c.commands)
	return c
}

// Complete returns completion suggestions for the given prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// IsCommand reports whether word is a known top-level command.
func (c *Completer) IsCommand(word string) bool {
	return c.roots[word]
}

// Suggest returns top-level commands sharing the first letters of word.
func (c *Completer) Suggest(word string) []string {
	if word == "" {
		return nil
	}
	n := 2
	if len(word) < n {
		n = len(word)
	}
	var out []string
	for root := range c.roots {
		if strings.HasPrefix(root, word[:n]) {
			out = append(out, root)
		}
	}
	sort.Strings(out)
	return out
}
