package catalog

import (
	"context"
	"fmt"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestDirectory_PutGet(t *testing.T) {
	dir := NewDirectory()

	if _, ok := dir.Get("missing"); ok {
		t.Fatal("empty directory returned an entry")
	}

	spec := NewSingleKeySpec("orders", "id", 0)
	dir.Put("GetOrder", spec)

	got, ok := dir.Get("GetOrder")
	if !ok || got != spec {
		t.Fatal("Put then Get did not return the same spec")
	}
	if dir.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", dir.Len())
	}
}

func TestDirectory_PutDoesNotDisturbReaders(t *testing.T) {
	dir := NewDirectory()
	dir.Put("P0", NewSingleKeySpec("t", "c", 0))

	// Readers hammer Get while a writer grows the directory. Every read
	// must observe a complete mapping: P0 is present from the start and
	// must never disappear.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}
				if _, ok := dir.Get("P0"); !ok {
					return fmt.Errorf("P0 vanished mid-publish")
				}
			}
		})
	}

	for i := 1; i <= 200; i++ {
		dir.Put(fmt.Sprintf("P%d", i), NewSingleKeySpec("t", "c", 0))
	}
	cancel()

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if dir.Len() != 201 {
		t.Fatalf("Len: got %d, want 201", dir.Len())
	}
}

func TestDirectory_SwapIsAtomic(t *testing.T) {
	// Old catalog: procedure routes on parameter 0. New catalog: same
	// procedure routes on parameter 1. Concurrent readers must observe one
	// or the other, never a torn state, and after the swap only the new one.
	oldDir := NewDirectory()
	oldDir.Put("GetOrder", NewSingleKeySpec("orders", "id", 0))

	next := NewDirectory()
	next.Put("GetOrder", NewSingleKeySpec("orders", "id", 1))
	next.Put("GetCustomer", NewSingleKeySpec("customers", "cid", 0))

	start := make(chan struct{})
	g := new(errgroup.Group)
	for i := 0; i < 1000; i++ {
		g.Go(func() error {
			<-start
			spec, ok := dirGet(oldDir, "GetOrder")
			if !ok {
				return fmt.Errorf("GetOrder missing during swap")
			}
			if spec.ParamIndex != 0 && spec.ParamIndex != 1 {
				return fmt.Errorf("torn spec: param index %d", spec.ParamIndex)
			}
			return nil
		})
	}

	close(start)
	oldDir.Swap(next)

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	spec, ok := oldDir.Get("GetOrder")
	if !ok || spec.ParamIndex != 1 {
		t.Fatal("swap did not install the new catalog")
	}
	if _, ok := oldDir.Get("GetCustomer"); !ok {
		t.Fatal("swap lost an entry of the new catalog")
	}
	if oldDir.Len() != 2 {
		t.Fatalf("Len after swap: got %d, want 2", oldDir.Len())
	}
}

func dirGet(d *Directory, name string) (*PartitionSpec, bool) {
	return d.Get(name)
}

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"orders", "Order_Items", "t$1", "a"}
	for _, name := range valid {
		if err := ValidateIdentifier("table", name); err != nil {
			t.Fatalf("ValidateIdentifier(%q): %v", name, err)
		}
	}

	invalid := []string{"", "1orders", "or ders", "naïve-table!", "_lead"}
	for _, name := range invalid {
		if err := ValidateIdentifier("table", name); err == nil {
			t.Fatalf("ValidateIdentifier(%q): want an error", name)
		}
	}
}
