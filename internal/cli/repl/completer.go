package repl

import (
	"sort"
	"strings"
)

// Source lists what can be completed.
type Source interface {
	// Actors returns the registered actor names.
	Actors() []string
	// Methods returns the method names of an actor.
	Methods(actor string) []string
}

// Completer provides completion for the REPL.
type Completer struct {
	commands []string
	source   Source
}

// NewCompleter creates a Completer for shell commands and the actors of
// source. source may be nil.
func NewCompleter(commands []string, source Source) *Completer {
	cmds := append([]string{"complete", "exit", "history", "quit"}, commands...)
	sort.Strings(cmds)
	return &Completer{commands: cmds, source: source}
}

// Complete returns completion suggestions for a partial line. The first
// word completes to commands and actor names, the second to the methods
// of the actor named by the first.
func (c *Completer) Complete(line string) []string {
	words := strings.Fields(line)
	trailing := strings.HasSuffix(line, " ")

	switch {
	case len(words) == 0:
		return c.firstWords("")
	case len(words) == 1 && !trailing:
		return c.firstWords(words[0])
	case len(words) == 1 && trailing:
		return c.methods(words[0], "")
	case len(words) == 2 && !trailing:
		return c.methods(words[0], words[1])
	default:
		return nil
	}
}

func (c *Completer) firstWords(prefix string) []string {
	candidates := append([]string(nil), c.commands...)
	if c.source != nil {
		candidates = append(candidates, c.source.Actors()...)
	}
	return matching(candidates, prefix, "")
}

func (c *Completer) methods(actor, prefix string) []string {
	if c.source == nil {
		return nil
	}
	return matching(c.source.Methods(actor), prefix, actor+" ")
}

func matching(candidates []string, prefix, lead string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range candidates {
		if strings.HasPrefix(s, prefix) && !seen[s] {
			seen[s] = true
			out = append(out, lead+s)
		}
	}
	sort.Strings(out)
	return out
}
