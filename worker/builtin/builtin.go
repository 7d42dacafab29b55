// Package builtin holds the interpreters every worker process can host.
package builtin

import (
	"strings"

	"github.com/scusemua/notebook-runtime/common/interpreter"
)

const (
	SQLClassName      = "builtin.sql"
	EchoClassName     = "builtin.echo"
	AngularClassName  = "builtin.angular"
	ResourceClassName = "builtin.resource"
	SleepClassName    = "builtin.sleep"
)

// Register adds the factory of every built-in interpreter to registry.
func Register(registry *interpreter.FactoryRegistry) {
	registry.Register(SQLClassName, NewSQLInterpreter)
	registry.Register(EchoClassName, NewEchoInterpreter)
	registry.Register(AngularClassName, NewAngularInterpreter)
	registry.Register(ResourceClassName, NewResourceInterpreter)
	registry.Register(SleepClassName, NewSleepInterpreter)
}

// NewFactoryRegistry returns a registry holding the built-in interpreters.
func NewFactoryRegistry() *interpreter.FactoryRegistry {
	registry := interpreter.NewFactoryRegistry()
	Register(registry)
	return registry
}

// splitCommand splits a one-line command into its verb, its first argument and the rest of the line.
func splitCommand(line string) (verb string, name string, rest string) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	switch len(fields) {
	case 3:
		rest = strings.TrimSpace(fields[2])
		fallthrough
	case 2:
		name = strings.TrimSpace(fields[1])
		fallthrough
	default:
		verb = fields[0]
	}
	return verb, name, rest
}

// commandLines returns the non-empty, non-comment lines of a paragraph.
func commandLines(st string) []string {
	lines := make([]string, 0)
	for _, line := range strings.Split(st, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
