// Package shell dispatches parsed commands against a connected client.
package shell

import (
	"fmt"

	"github.com/kartikbazzad/sharddb/cmd/sharddbsh/commands"
	"github.com/kartikbazzad/sharddb/cmd/sharddbsh/parser"
	"github.com/kartikbazzad/sharddb/pkg/client"
)

type Shell struct {
	socketPath string
	client     *client.Client
}

func NewShell(socketPath, role string) *Shell {
	return &Shell{
		socketPath: socketPath,
		client:     client.New(socketPath, client.Options{Role: role}),
	}
}

func (s *Shell) Connect() error {
	return s.client.Connect()
}

func (s *Shell) Close() error {
	return s.client.Close()
}

func (s *Shell) Execute(cmd *parser.Command) commands.Result {
	switch cmd.Name {
	case ".help":
		return commands.Help()
	case ".exit", ".quit":
		return commands.Exit()
	case ".role":
		return s.setRole(cmd)
	case ".invoke":
		return commands.Invoke(s.client, cmd)
	case ".compile":
		return commands.Compile(s.client, cmd)
	case ".catalog":
		return commands.Catalog(s.client)
	case ".stats":
		return commands.Stats(s.client)
	case ".metrics":
		return commands.Metrics(s.client)
	default:
		return commands.ErrorResult{Err: fmt.Sprintf("unknown command: %s", cmd.Name)}
	}
}

func (s *Shell) setRole(cmd *parser.Command) commands.Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return commands.ErrorResult{Err: err.Error()}
	}
	s.client.SetRole(cmd.Args[0])
	return commands.OKResult{Message: fmt.Sprintf("role set to %s", cmd.Args[0])}
}

// CommandNames lists the shell's commands for tab completion.
func CommandNames() []string {
	return []string{".help", ".exit", ".quit", ".role", ".invoke", ".compile", ".catalog", ".stats", ".metrics"}
}
