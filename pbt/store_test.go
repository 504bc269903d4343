package pbt

import "testing"

func TestMemStoreMonotoneSteps(t *testing.T) {
	store := NewMemStore()
	m := makeScoredMember(t, 1, 0.5)
	m.Steps = 10
	if err := store.Update(m.ID, m.Steps, m); err != nil {
		t.Fatalf("Update: %v", err)
	}
	m.Steps = 20
	if err := store.Update(m.ID, m.Steps, m); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, ok := store.Get(m.ID, -1)
	if !ok {
		t.Fatal("expected latest snapshot to exist")
	}
	if got.Steps != 20 {
		t.Errorf("latest snapshot steps = %d, want 20", got.Steps)
	}

	older, ok := store.Get(m.ID, 10)
	if !ok || older.Steps != 10 {
		t.Fatal("expected to still retrieve the earlier snapshot by explicit steps")
	}
}

func TestMemStoreCollectRetainsLatest(t *testing.T) {
	store := NewMemStore()
	m := makeScoredMember(t, 1, 0.5)
	for steps := 1; steps <= 5; steps++ {
		m.Steps = steps
		_ = store.Update(m.ID, steps, m)
	}
	store.Collect(10, 2)
	if _, ok := store.Get(m.ID, 1); ok {
		t.Error("expected old snapshot to be collected")
	}
	if _, ok := store.Get(m.ID, 5); !ok {
		t.Error("expected latest snapshot to survive collection")
	}
}
