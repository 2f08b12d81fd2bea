package concurrency

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/server"
	"github.com/kartikbazzad/sharddb/internal/types"
	"github.com/kartikbazzad/sharddb/pkg/client"
)

func startNode(t *testing.T) (*server.App, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.IPC.SocketPath = filepath.Join(dir, "sharddb.sock")
	cfg.Cluster.PartitionCount = 4

	app, err := server.New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	t.Cleanup(app.Stop)
	return app, cfg
}

func connect(t *testing.T, cfg *config.Config) *client.Client {
	t.Helper()
	c := client.New(cfg.IPC.SocketPath, client.Options{Timeout: 10 * time.Second})
	if err := c.Connect(); err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// Eight clients insert disjoint key ranges at once; every insert must land
// exactly once and every row must be readable afterwards.
func TestConcurrentInserts(t *testing.T) {
	app, cfg := startNode(t)
	admin := connect(t, cfg)

	if err := admin.Compile("orders.insert", "PARTITION ON TABLE orders COLUMN id PARAMETER 0"); err != nil {
		t.Fatalf("Compile insert: %v", err)
	}
	if err := admin.Compile("orders.select", "PARTITION ON TABLE orders COLUMN id PARAMETER 0"); err != nil {
		t.Fatalf("Compile select: %v", err)
	}

	const (
		writers       = 8
		rowsPerWriter = 25
	)

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			c := client.New(cfg.IPC.SocketPath, client.Options{Timeout: 10 * time.Second})
			if err := c.Connect(); err != nil {
				return err
			}
			defer c.Close()

			for i := 0; i < rowsPerWriter; i++ {
				key := fmt.Sprintf("w%d-o%d", w, i)
				resp, err := c.Invoke(context.Background(), "orders.insert", key, w)
				if err != nil {
					return err
				}
				if resp.Status != types.StatusSuccess {
					return fmt.Errorf("insert %s: %s (%s)", key, resp.Status, resp.StatusString)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent inserts: %v", err)
	}

	total := 0
	for pid := 0; pid < cfg.Cluster.PartitionCount; pid++ {
		total += app.Engine().Partition(pid).RowCount("orders")
	}
	if total != writers*rowsPerWriter {
		t.Fatalf("row count = %d, want %d", total, writers*rowsPerWriter)
	}

	for w := 0; w < writers; w++ {
		key := fmt.Sprintf("w%d-o%d", w, rowsPerWriter-1)
		resp, err := admin.Invoke(context.Background(), "orders.select", key)
		if err != nil {
			t.Fatalf("select %s: %v", key, err)
		}
		if len(resp.Results[0].Rows) != 1 {
			t.Fatalf("select %s rows = %+v", key, resp.Results[0].Rows)
		}
	}
}

// Writers keep inserting while the topology rebalances under them. The
// router must absorb every misrouted attempt; callers only ever see
// terminal statuses.
func TestInsertsDuringRebalance(t *testing.T) {
	app, cfg := startNode(t)
	admin := connect(t, cfg)

	if err := admin.Compile("orders.upsert", "PARTITION ON TABLE orders COLUMN id PARAMETER 0"); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	stop := make(chan struct{})
	rotator := make(chan struct{})
	go func() {
		defer close(rotator)
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				app.Engine().Topology().RotateOwners()
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			c := client.New(cfg.IPC.SocketPath, client.Options{Timeout: 10 * time.Second})
			if err := c.Connect(); err != nil {
				return err
			}
			defer c.Close()

			for i := 0; i < 50; i++ {
				resp, err := c.Invoke(context.Background(), "orders.upsert", fmt.Sprintf("w%d-o%d", w, i), i)
				if err != nil {
					return err
				}
				if !resp.Status.IsTerminal() {
					return fmt.Errorf("internal status %s leaked to caller", resp.Status)
				}
				if resp.Status != types.StatusSuccess && resp.Status != types.StatusClientResponseTimeout {
					return fmt.Errorf("upsert status = %s (%s)", resp.Status, resp.StatusString)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	close(stop)
	<-rotator
	if err != nil {
		t.Fatalf("inserts during rebalance: %v", err)
	}
}

// Concurrent runtime compiles and invocations must not tear the catalog:
// every invocation sees either the old catalog or the new one in full.
func TestCompileDuringInvocations(t *testing.T) {
	_, cfg := startNode(t)
	admin := connect(t, cfg)

	if err := admin.Compile("orders.upsert", "PARTITION ON TABLE orders COLUMN id PARAMETER 0"); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		c := client.New(cfg.IPC.SocketPath, client.Options{Timeout: 10 * time.Second})
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Close()

		for i := 0; i < 20; i++ {
			table := fmt.Sprintf("t%d", i)
			clauses := fmt.Sprintf("PARTITION ON TABLE %s COLUMN id PARAMETER 0", table)
			if err := c.Compile(table+".insert", clauses); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		c := client.New(cfg.IPC.SocketPath, client.Options{Timeout: 10 * time.Second})
		if err := c.Connect(); err != nil {
			return err
		}
		defer c.Close()

		for i := 0; i < 100; i++ {
			resp, err := c.Invoke(context.Background(), "orders.upsert", fmt.Sprintf("o-%d", i), i)
			if err != nil {
				return err
			}
			if resp.Status != types.StatusSuccess {
				return fmt.Errorf("upsert %d: %s (%s)", i, resp.Status, resp.StatusString)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("compile during invocations: %v", err)
	}

	entries, err := admin.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(entries) != 21 {
		t.Fatalf("catalog size = %d, want 21", len(entries))
	}
}
