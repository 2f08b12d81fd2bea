package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd creates the root sharddb command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sharddb",
		Short:         "Partitioned procedure execution server",
		Long:          "sharddb runs stored procedures against a partitioned in-memory store.\nProcedures declare their partitioning with CREATE PROCEDURE clauses;\nthe router resolves each invocation to its partition and hides\nrepartitioning from callers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newCompileCmd(),
	)

	return cmd
}
