package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemoryStore(t *testing.T, opts ...StoreOption) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(time.Minute, opts...)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	return store
}

func TestMemoryStoreSaveLoadDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestMemoryStore(t)

	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() on empty store error = %v, want ErrStateNotFound", err)
	}

	st := NewSession("s1", "flow-1", FlowAddOrder, time.Now())
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.FlowID != "flow-1" || got.Step != StepName {
		t.Fatalf("Load() = %+v", got)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() after delete error = %v", err)
	}
}

func TestMemoryStoreSaveReplacesPreviousFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestMemoryStore(t)

	first := NewSession("s1", "flow-1", FlowAddOrder, time.Now())
	if err := first.Advance(StepPrice, Fields{Name: "Laptop"}, time.Now()); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := NewSession("s1", "flow-2", FlowAddAgent, time.Now())
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Flow != FlowAddAgent || got.Fields.Name != "" {
		t.Fatalf("expected replaced session, got %+v", got)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestMemoryStore(t)

	price := int64(100)
	st := NewSession("s1", "flow-1", FlowAddOrder, time.Now())
	st.Step = StepAgent
	st.Fields = Fields{Name: "Laptop", Price: &price, PriceCollected: true}
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	price = 1
	st.Fields.Name = "mutated"

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Fields.Name != "Laptop" || *got.Fields.Price != 100 {
		t.Fatalf("stored session was mutated through caller pointer: %+v", got.Fields)
	}

	*got.Fields.Price = 5
	again, _ := store.Load(ctx, "s1")
	if *again.Fields.Price != 100 {
		t.Fatal("stored session was mutated through loaded pointer")
	}
}

func TestMemoryStoreUpdateFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestMemoryStore(t)

	if _, err := store.UpdateFields(ctx, "s1", Fields{Name: "x"}); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("UpdateFields() without session error = %v, want ErrStateNotFound", err)
	}

	st := NewSession("s1", "flow-1", FlowAddOrder, time.Now())
	st.Fields.Name = "Laptop"
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.UpdateFields(ctx, "s1", Fields{PriceCollected: true})
	if err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if got.Fields.Name != "Laptop" || !got.Fields.PriceCollected || got.Fields.Price != nil {
		t.Fatalf("UpdateFields() = %+v", got.Fields)
	}

	loaded, _ := store.Load(ctx, "s1")
	if !loaded.Fields.PriceCollected {
		t.Fatal("UpdateFields() result was not persisted")
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestMemoryStore(t, WithTTL(20*time.Millisecond))

	if err := store.Save(ctx, NewSession("s1", "flow-1", FlowFindOrder, time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("Load() after ttl error = %v, want ErrStateNotFound", err)
	}
}
