// Package commands implements the shell's command set. Each command returns
// a Result that knows how to print itself.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kartikbazzad/sharddb/cmd/sharddbsh/parser"
	"github.com/kartikbazzad/sharddb/internal/ipc"
	"github.com/kartikbazzad/sharddb/internal/types"
)

type Result interface {
	Print(w io.Writer)
	IsExit() bool
}

type ErrorResult struct {
	Err string
}

func (e ErrorResult) Print(w io.Writer) {
	fmt.Fprintln(w, "ERROR")
	fmt.Fprintln(w, e.Err)
}

func (e ErrorResult) IsExit() bool {
	return false
}

type ExitResult struct{}

func (e ExitResult) Print(w io.Writer) {}

func (e ExitResult) IsExit() bool {
	return true
}

type HelpResult struct{}

func (h HelpResult) Print(w io.Writer) {
	fmt.Fprintln(w, "sharddb Shell Commands:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Meta Commands:")
	fmt.Fprintln(w, "  .help                Show this help message")
	fmt.Fprintln(w, "  .exit                Exit the shell")
	fmt.Fprintln(w, "  .role <name>         Set the role sent with invocations")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Invocations:")
	fmt.Fprintln(w, "  .invoke <proc> [args...]    Invoke a stored procedure")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Arguments parse as JSON when possible, else as strings:")
	fmt.Fprintln(w, "    .invoke orders.insert 42 {\"total\":9.5}")
	fmt.Fprintln(w, "    .invoke orders.select 42")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Schema:")
	fmt.Fprintln(w, "  .compile <proc> [clauses...]    Compile a CREATE PROCEDURE declaration")
	fmt.Fprintln(w, "  .catalog                         List procedures and partition specs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Example:")
	fmt.Fprintln(w, "    .compile orders.insert PARTITION ON TABLE orders COLUMN id PARAMETER 0")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Introspection:")
	fmt.Fprintln(w, "  .stats      Print server counters")
	fmt.Fprintln(w, "  .metrics    Print the exposition-format metrics page")
}

func (h HelpResult) IsExit() bool {
	return false
}

// Client is the server surface the shell needs.
type Client interface {
	Invoke(ctx context.Context, procedure string, args ...any) (*types.Response, error)
	Compile(procedure, clauses string) error
	Catalog() ([]ipc.CatalogEntry, error)
	Stats() (*types.Stats, error)
	Metrics() (string, error)
}

type ResponseResult struct {
	Resp *types.Response
}

func (r ResponseResult) Print(w io.Writer) {
	resp := r.Resp
	if resp.Failed() {
		fmt.Fprintf(w, "%s", resp.Status)
		if resp.StatusString != "" {
			fmt.Fprintf(w, ": %s", resp.StatusString)
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%s (%s)\n", resp.Status, resp.ClusterRoundtrip)
	for _, table := range resp.Results {
		printTable(w, &table)
	}
}

func (r ResponseResult) IsExit() bool {
	return false
}

func printTable(w io.Writer, table *types.Table) {
	fmt.Fprintln(w, strings.Join(table.Columns, " | "))
	for _, row := range table.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		fmt.Fprintln(w, strings.Join(cells, " | "))
	}
	fmt.Fprintf(w, "(%d rows)\n", table.RowCount())
}

type OKResult struct {
	Message string
}

func (o OKResult) Print(w io.Writer) {
	fmt.Fprintln(w, "OK")
	if o.Message != "" {
		fmt.Fprintln(w, o.Message)
	}
}

func (o OKResult) IsExit() bool {
	return false
}

func Help() Result {
	return HelpResult{}
}

func Exit() Result {
	return ExitResult{}
}

func Invoke(c Client, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}

	resp, err := c.Invoke(context.Background(), cmd.Args[0], parser.ParseArgs(cmd.Args[1:])...)
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return ResponseResult{Resp: resp}
}

func Compile(c Client, cmd *parser.Command) Result {
	if err := parser.ValidateArgs(cmd, 1); err != nil {
		return ErrorResult{Err: err.Error()}
	}

	clauses := strings.Join(cmd.Args[1:], " ")
	if err := c.Compile(cmd.Args[0], clauses); err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{Message: fmt.Sprintf("compiled %s", cmd.Args[0])}
}

func Catalog(c Client) Result {
	entries, err := c.Catalog()
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s  %s", entry.Procedure, entry.Spec)
		if len(entry.Roles) > 0 {
			fmt.Fprintf(&b, "  ALLOW %s", strings.Join(entry.Roles, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "(%d procedures)", len(entries))
	return OKResult{Message: b.String()}
}

func Stats(c Client) Result {
	stats, err := c.Stats()
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}

	msg := fmt.Sprintf("procedures=%d partitions=%d topology=v%d invocations=%d retries=%d timeouts=%d",
		stats.Procedures, stats.Partitions, stats.TopologyVersion,
		stats.Invocations, stats.Retries, stats.Timeouts)
	return OKResult{Message: msg}
}

func Metrics(c Client) Result {
	text, err := c.Metrics()
	if err != nil {
		return ErrorResult{Err: err.Error()}
	}
	return OKResult{Message: strings.TrimRight(text, "\n")}
}
