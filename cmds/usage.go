package cmds

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

func (p *Executor) PrintUsage() {
	p.WriteUsage(os.Stderr)
}

func (p *Executor) WriteUsage(w io.Writer) {
	seen := make(map[*Command]bool)
	var names []string
	for name := range p.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		command := p.commands[name]
		if seen[command] || command.Hidden || slices.Contains(command.Aliases, name) {
			continue
		}
		seen[command] = true
		writeCommand(w, 0, name, command)
	}
}

func writeCommand(w io.Writer, depth int, name string, command *Command) {
	if command == nil || command.Hidden {
		return
	}
	indent := strings.Repeat("  ", depth)
	line := indent + name
	if len(command.Aliases) > 0 {
		line += " (" + strings.Join(command.Aliases, ", ") + ")"
	}
	if command.Description != "" {
		line += "\t" + command.Description
	}
	fmt.Fprintln(w, line)
	var subs []string
	for sub := range command.Subs {
		subs = append(subs, sub)
	}
	slices.Sort(subs)
	for _, sub := range subs {
		writeCommand(w, depth+1, sub, command.Subs[sub])
	}
}
