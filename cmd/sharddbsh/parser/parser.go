// Package parser turns shell input lines into commands and converts
// argument text into invocation argument values.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Command struct {
	Name string
	Args []string
	Line string
}

func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty command")
	}

	parts := strings.Fields(line)
	if !strings.HasPrefix(parts[0], ".") {
		return nil, fmt.Errorf("commands must start with '.'")
	}

	return &Command{
		Name: parts[0],
		Args: parts[1:],
		Line: line,
	}, nil
}

// ParseArg converts one argument token into an invocation argument. Tokens
// that parse as JSON keep their JSON type; everything else is a string, so
// bare identifiers work without quoting.
func ParseArg(token string) any {
	var v any
	if err := json.Unmarshal([]byte(token), &v); err == nil {
		return v
	}
	return token
}

// ParseArgs converts a token list into invocation arguments.
func ParseArgs(tokens []string) []any {
	args := make([]any, len(tokens))
	for i, tok := range tokens {
		args[i] = ParseArg(tok)
	}
	return args
}

func ValidateArgs(cmd *Command, count int) error {
	if len(cmd.Args) < count {
		return fmt.Errorf("expected %d argument(s), got %d", count, len(cmd.Args))
	}
	return nil
}
