package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/config"
	sderr "github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/topology"
	"github.com/kartikbazzad/sharddb/internal/types"
)

func newTestEngine(t *testing.T, partitions int) *Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Cluster.PartitionCount = partitions
	cfg.Cluster.SiteQueueSize = 16

	eng := New(cfg, logger.Nop())
	eng.Start()
	t.Cleanup(eng.Stop)
	return eng
}

func invoke(name string, args ...any) *types.Invocation {
	return &types.Invocation{
		ID:        types.NewInvocationID(),
		Procedure: name,
		Args:      args,
	}
}

// dispatch resolves the owning partition for arg 0 and delivers one attempt
// under the current view.
func dispatch(t *testing.T, eng *Engine, inv *types.Invocation) *types.Response {
	t.Helper()
	view := eng.Topology().Current()
	pid := topology.PartitionForKey(inv.Args[0], view.PartitionCount)
	resp, err := eng.Dispatch(context.Background(), inv, pid, view)
	if err != nil {
		t.Fatalf("Dispatch %s: %v", inv.Procedure, err)
	}
	return resp
}

func TestEngine_DefaultProcedures(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	resp := dispatch(t, eng, invoke("orders.insert", "o-1", "widget"))
	if resp.Status != types.StatusSuccess {
		t.Fatalf("insert status = %s (%s)", resp.Status, resp.StatusString)
	}
	if len(resp.Results) != 1 || resp.Results[0].Rows[0][0] != 1 {
		t.Fatalf("insert results = %+v", resp.Results)
	}

	resp = dispatch(t, eng, invoke("orders.select", "o-1"))
	if resp.Status != types.StatusSuccess {
		t.Fatalf("select status = %s (%s)", resp.Status, resp.StatusString)
	}
	rows := resp.Results[0].Rows
	if len(rows) != 1 || rows[0][0] != "o-1" || rows[0][1] != "widget" {
		t.Fatalf("select rows = %+v", rows)
	}

	// A second insert of the same key is a constraint violation, not an
	// overwrite.
	resp = dispatch(t, eng, invoke("orders.insert", "o-1", "gadget"))
	if resp.Status != types.StatusGracefulFailure {
		t.Fatalf("duplicate insert status = %s", resp.Status)
	}

	resp = dispatch(t, eng, invoke("orders.upsert", "o-1", "gadget"))
	if resp.Status != types.StatusSuccess {
		t.Fatalf("upsert status = %s (%s)", resp.Status, resp.StatusString)
	}

	resp = dispatch(t, eng, invoke("orders.delete", "o-1"))
	if resp.Status != types.StatusSuccess || resp.Results[0].Rows[0][0] != 1 {
		t.Fatalf("delete status = %s results = %+v", resp.Status, resp.Results)
	}
	resp = dispatch(t, eng, invoke("orders.delete", "o-1"))
	if resp.Results[0].Rows[0][0] != 0 {
		t.Fatalf("second delete should modify zero rows, got %+v", resp.Results)
	}
}

func TestEngine_AtMostOncePerInvocationID(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	inv := invoke("orders.insert", "o-7", "widget")
	first := dispatch(t, eng, inv)
	if first.Status != types.StatusSuccess {
		t.Fatalf("first attempt status = %s (%s)", first.Status, first.StatusString)
	}

	// The replayed attempt carries the same identity. A re-execution would
	// hit the duplicate-key constraint; the stored outcome must come back
	// instead.
	second := dispatch(t, eng, inv)
	if second.Status != types.StatusSuccess {
		t.Fatalf("replayed attempt status = %s (%s)", second.Status, second.StatusString)
	}

	view := eng.Topology().Current()
	pid := topology.PartitionForKey("o-7", view.PartitionCount)
	if n := eng.Partition(pid).RowCount("orders"); n != 1 {
		t.Fatalf("row count after replay = %d, want 1", n)
	}
}

func TestEngine_MisroutedUnderStaleView(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	stale := eng.Topology().Current()
	eng.Topology().RotateOwners()

	inv := invoke("orders.insert", "o-1", "widget")
	pid := topology.PartitionForKey("o-1", stale.PartitionCount)
	resp, err := eng.Dispatch(context.Background(), inv, pid, stale)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusTxnMisrouted {
		t.Fatalf("status = %s, want TXN_MISROUTED", resp.Status)
	}
	if !resp.Status.IsRetryable() || resp.Status.IsTerminal() {
		t.Fatalf("TXN_MISROUTED must be retryable and internal")
	}

	// Re-resolving against the current view lands the attempt.
	resp = dispatch(t, eng, inv)
	if resp.Status != types.StatusSuccess {
		t.Fatalf("retry status = %s (%s)", resp.Status, resp.StatusString)
	}
}

func TestEngine_MispartitionedOnWrongKeyOwner(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	view := eng.Topology().Current()
	correct := topology.PartitionForKey("o-1", view.PartitionCount)
	wrong := (correct + 1) % view.PartitionCount

	inv := invoke("orders.insert", "o-1", "widget")
	resp, err := eng.Dispatch(context.Background(), inv, wrong, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusTxnMispartitioned {
		t.Fatalf("status = %s, want TXN_MISPARTITIONED", resp.Status)
	}
	if n := eng.Partition(wrong).RowCount("orders"); n != 0 {
		t.Fatalf("mispartitioned attempt must not apply, row count = %d", n)
	}
}

func installTwoKeyPay(t *testing.T, eng *Engine) {
	t.Helper()
	procs := []catalog.Procedure{{
		Name: "orders.pay",
		Spec: catalog.NewTwoKeySpec("orders", "id", 0, "customers", "cid", 1),
	}}
	handlers := map[string]Handler{
		"orders.pay": func(p *Partition, args []any) ([]types.Table, error) {
			return countTable(1), nil
		},
	}
	if err := eng.InstallCatalog(procs, handlers); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}
}

func TestEngine_TwoKeyRecheckUsesBothKeys(t *testing.T) {
	eng := newTestEngine(t, 4)
	installTwoKeyPay(t, eng)
	view := eng.Topology().Current()

	// A second key value whose compound hash lands away from the first
	// key's own partition.
	second := "c-1"
	for i := 2; topology.PartitionForKeys([]any{"o-1", second}, view.PartitionCount) ==
		topology.PartitionForKey("o-1", view.PartitionCount); i++ {
		second = fmt.Sprintf("c-%d", i)
	}
	correct := topology.PartitionForKeys([]any{"o-1", second}, view.PartitionCount)

	resp, err := eng.Dispatch(context.Background(), invoke("orders.pay", "o-1", second, 250), correct, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusSuccess {
		t.Fatalf("status = %s (%s)", resp.Status, resp.StatusString)
	}

	// Delivery to the partition the first key alone hashes to must fail the
	// re-check; the second key is part of the routing contract.
	firstOnly := topology.PartitionForKey("o-1", view.PartitionCount)
	resp, err = eng.Dispatch(context.Background(), invoke("orders.pay", "o-1", second, 250), firstOnly, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusTxnMispartitioned {
		t.Fatalf("status = %s, want TXN_MISPARTITIONED", resp.Status)
	}
}

func TestEngine_TwoKeyMissingSecondArgument(t *testing.T) {
	eng := newTestEngine(t, 4)
	installTwoKeyPay(t, eng)
	view := eng.Topology().Current()

	pid := topology.PartitionForKey("o-1", view.PartitionCount)
	resp, err := eng.Dispatch(context.Background(), invoke("orders.pay", "o-1"), pid, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusGracefulFailure {
		t.Fatalf("status = %s, want GRACEFUL_FAILURE", resp.Status)
	}
	if resp.StatusString != "missing partition key argument" {
		t.Fatalf("status string = %q", resp.StatusString)
	}
}

func TestEngine_UnknownProcedure(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	resp := dispatch(t, eng, invoke("nosuch.select", "k"))
	if resp.Status != types.StatusGracefulFailure {
		t.Fatalf("status = %s, want GRACEFUL_FAILURE", resp.Status)
	}
	if resp.StatusString != sderr.ErrProcedureNotFound.Error() {
		t.Fatalf("status string = %q", resp.StatusString)
	}
}

func TestEngine_RoleEnforcement(t *testing.T) {
	eng := newTestEngine(t, 4)

	procs := []catalog.Procedure{{
		Name:  "Admin$Reset",
		Spec:  catalog.NewDirectedSpec(),
		Roles: []string{"admin"},
	}}
	handlers := map[string]Handler{
		"Admin$Reset": func(p *Partition, args []any) ([]types.Table, error) {
			return countTable(0), nil
		},
	}
	if err := eng.InstallCatalog(procs, handlers); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	view := eng.Topology().Current()
	pid := topology.PartitionForProcedure("Admin$Reset", view.PartitionCount)

	inv := invoke("Admin$Reset")
	resp, err := eng.Dispatch(context.Background(), inv, pid, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusGracefulFailure {
		t.Fatalf("unprivileged status = %s, want GRACEFUL_FAILURE", resp.Status)
	}

	inv = invoke("Admin$Reset")
	inv.Role = "admin"
	resp, err = eng.Dispatch(context.Background(), inv, pid, view)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Status != types.StatusSuccess {
		t.Fatalf("privileged status = %s (%s)", resp.Status, resp.StatusString)
	}
}

func TestEngine_UserAbort(t *testing.T) {
	eng := newTestEngine(t, 2)

	procs := []catalog.Procedure{{
		Name: "Pay",
		Spec: catalog.NewSingleKeySpec("accounts", "id", 0),
	}}
	handlers := map[string]Handler{
		"Pay": func(p *Partition, args []any) ([]types.Table, error) {
			return nil, Abort("insufficient balance for %v", args[0])
		},
	}
	if err := eng.InstallCatalog(procs, handlers); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	resp := dispatch(t, eng, invoke("Pay", "acct-1"))
	if resp.Status != types.StatusUserAbort {
		t.Fatalf("status = %s, want USER_ABORT", resp.Status)
	}
	if resp.StatusString != "insufficient balance for acct-1" {
		t.Fatalf("status string = %q", resp.StatusString)
	}
	if !resp.Status.IsTerminal() {
		t.Fatalf("USER_ABORT must be terminal")
	}
}

func TestEngine_DispatchAll(t *testing.T) {
	eng := newTestEngine(t, 4)

	procs := DefaultProcedures("orders", "id")
	procs = append(procs, catalog.Procedure{Name: "CountOrders"})
	handlers := map[string]Handler{
		"CountOrders": func(p *Partition, args []any) ([]types.Table, error) {
			return countTable(p.RowCount("orders")), nil
		},
	}
	if err := eng.InstallCatalog(procs, handlers); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	keys := []string{"o-1", "o-2", "o-3", "o-4", "o-5", "o-6"}
	for _, k := range keys {
		resp := dispatch(t, eng, invoke("orders.insert", k, "x"))
		if resp.Status != types.StatusSuccess {
			t.Fatalf("insert %s: %s (%s)", k, resp.Status, resp.StatusString)
		}
	}

	resp, err := eng.DispatchAll(context.Background(), invoke("CountOrders"))
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if resp.Status != types.StatusSuccess {
		t.Fatalf("status = %s (%s)", resp.Status, resp.StatusString)
	}
	if len(resp.Results) != 4 {
		t.Fatalf("fragments = %d, want one per partition", len(resp.Results))
	}
	total := 0
	for _, tbl := range resp.Results {
		total += tbl.Rows[0][0].(int)
	}
	if total != len(keys) {
		t.Fatalf("counted %d rows, want %d", total, len(keys))
	}
}

func TestEngine_DispatchAllPartialFailure(t *testing.T) {
	eng := newTestEngine(t, 4)

	procs := []catalog.Procedure{{Name: "Sweep"}}
	handlers := map[string]Handler{
		"Sweep": func(p *Partition, args []any) ([]types.Table, error) {
			if p.ID() == 2 {
				return nil, errors.New("disk full")
			}
			return countTable(0), nil
		},
	}
	if err := eng.InstallCatalog(procs, handlers); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	resp, err := eng.DispatchAll(context.Background(), invoke("Sweep"))
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if resp.Status != types.StatusOperationalFailure {
		t.Fatalf("status = %s, want OPERATIONAL_FAILURE", resp.Status)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("partial results = %d, want the fragments applied before the failure", len(resp.Results))
	}
}

func TestEngine_FaultInjection(t *testing.T) {
	eng := newTestEngine(t, 4)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}

	eng.SetFault(func(inv *types.Invocation, partitionID int) types.StatusCode {
		return types.StatusTxnRestart
	})

	inv := invoke("orders.insert", "o-9", "widget")
	resp := dispatch(t, eng, inv)
	if resp.Status != types.StatusTxnRestart {
		t.Fatalf("status = %s, want TXN_RESTART", resp.Status)
	}

	// Internal codes are not recorded against the invocation identity, so
	// the same attempt applies cleanly once the fault clears.
	eng.SetFault(nil)
	resp = dispatch(t, eng, inv)
	if resp.Status != types.StatusSuccess {
		t.Fatalf("post-fault status = %s (%s)", resp.Status, resp.StatusString)
	}
}

func TestEngine_InstallCatalogRequiresHandler(t *testing.T) {
	eng := newTestEngine(t, 2)

	err := eng.InstallCatalog([]catalog.Procedure{{Name: "Orphan"}}, nil)
	if err == nil {
		t.Fatalf("expected install to fail for a procedure with no handler")
	}
	if !sderr.IsCompileError(err) {
		t.Fatalf("error = %v, want a compile error", err)
	}
}

func TestEngine_DispatchErrors(t *testing.T) {
	eng := newTestEngine(t, 2)
	if err := eng.InstallCatalog(DefaultProcedures("orders", "id"), nil); err != nil {
		t.Fatalf("InstallCatalog: %v", err)
	}
	view := eng.Topology().Current()

	_, err := eng.Dispatch(context.Background(), invoke("orders.select", "k"), -1, view)
	if !errors.Is(err, sderr.ErrUnknownPartition) {
		t.Fatalf("out-of-range partition error = %v", err)
	}

	eng.Stop()
	_, err = eng.Dispatch(context.Background(), invoke("orders.select", "k"), 0, view)
	if !errors.Is(err, sderr.ErrServerStopped) {
		t.Fatalf("stopped engine error = %v", err)
	}
}
