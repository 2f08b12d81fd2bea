package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/ddl"
	"github.com/kartikbazzad/sharddb/internal/logger"
)

// newCompileCmd creates the "sharddb compile" subcommand: offline DDL
// compilation into a catalog artifact the server loads at startup.
func newCompileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "compile <ddl-file>",
		Short: "Compile CREATE PROCEDURE declarations into a catalog artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			logr := logger.Default()
			compiler := ddl.NewCompiler(logr)

			for _, stmt := range ddl.SplitStatements(string(text)) {
				name, clauses, err := ddl.ParseStatement(stmt)
				if err != nil {
					return err
				}
				if err := compiler.CompileProcedure(name, clauses); err != nil {
					return err
				}
			}

			procs := compiler.Procedures()
			if err := catalog.NewArtifact(output, logr).Save(procs); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d procedures to %s\n", len(procs), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "catalog.db", "Artifact output path")

	return cmd
}
