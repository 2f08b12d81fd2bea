// Package main is the interactive sharddb shell.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/kartikbazzad/sharddb/cmd/sharddbsh/parser"
	"github.com/kartikbazzad/sharddb/cmd/sharddbsh/shell"
)

func main() {
	socketPath := flag.String("socket", "/tmp/sharddb.sock", "Unix socket path")
	role := flag.String("role", "", "Role sent with invocations")
	flag.Parse()

	fmt.Printf("sharddb shell\n")
	fmt.Printf("Connecting to %s...\n", *socketPath)

	sh := shell.NewShell(*socketPath, *role)
	defer sh.Close()

	if err := sh.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Connected. Type '.help' for commands.\n\n")

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var matches []string
		for _, name := range shell.CommandNames() {
			if strings.HasPrefix(name, prefix) {
				matches = append(matches, name)
			}
		}
		return matches
	})

	historyPath := historyFile()
	if f, err := os.Open(historyPath); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			fmt.Println()
			return
		}

		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		cmd, err := parser.Parse(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR\n%v\n", err)
			continue
		}

		result := sh.Execute(cmd)
		result.Print(os.Stdout)
		if result.IsExit() {
			return
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sharddbsh_history"
	}
	return filepath.Join(home, ".sharddbsh_history")
}
