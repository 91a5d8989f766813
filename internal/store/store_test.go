package store

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "specs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetSpec(t *testing.T) {
	s := newTestStore(t)

	id, err := s.PutSpec(&StoredSpec{
		Name:        "Order",
		Source:      "tuple[int, str]",
		Description: "an order row",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == 0 {
		t.Error("put must return a row id")
	}

	got, err := s.GetSpec("Order")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("stored spec not found")
	}
	if got.Source != "tuple[int, str]" || got.Description != "an order row" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps must be set")
	}
}

func TestGetSpecMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSpec("nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("missing spec must be nil, got %+v", got)
	}
}

func TestPutSpecReplacesByName(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int | str"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSpec("Order")
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "int | str" {
		t.Errorf("replacement must win, got %q", got.Source)
	}

	specs, err := s.ListSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Errorf("replacement must not duplicate, have %d specs", len(specs))
	}
}

func TestPutSpecUpdateKeepsOwnID(t *testing.T) {
	s := newTestStore(t)

	firstID, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int"})
	if err != nil {
		t.Fatal(err)
	}
	// A later insert on the same connection moves last_insert_rowid
	// past Order's row; the update below must not pick it up.
	if _, err := s.PutSpec(&StoredSpec{Name: "Other", Source: "str"}); err != nil {
		t.Fatal(err)
	}

	updatedID, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int | str"})
	if err != nil {
		t.Fatal(err)
	}
	if updatedID != firstID {
		t.Errorf("updating Order returned id %d, want its real id %d", updatedID, firstID)
	}

	got, err := s.GetSpec("Order")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != firstID {
		t.Errorf("stored row id %d, want %d", got.ID, firstID)
	}
}

func TestListSpecsOrdersByName(t *testing.T) {
	s := newTestStore(t)

	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		if _, err := s.PutSpec(&StoredSpec{Name: name, Source: "int"}); err != nil {
			t.Fatal(err)
		}
	}

	specs, err := s.ListSpecs()
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}
	if specs[0].Name != "Alpha" || specs[1].Name != "Mid" || specs[2].Name != "Zeta" {
		t.Errorf("specs out of order: %s, %s, %s", specs[0].Name, specs[1].Name, specs[2].Name)
	}
}

func TestDeleteSpec(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int"}); err != nil {
		t.Fatal(err)
	}

	existed, err := s.DeleteSpec("Order")
	if err != nil {
		t.Fatal(err)
	}
	if !existed {
		t.Error("delete must report the spec existed")
	}

	existed, err = s.DeleteSpec("Order")
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Error("second delete must report missing")
	}
}

func TestViolationLog(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		err := s.RecordViolation(&Violation{
			SpecName: "Order",
			Path:     "/data/order.json",
			Slot:     "value",
			Message:  "value[0]: str \"x\" does not satisfy int",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordViolation(&Violation{SpecName: "Other", Message: "m"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentViolations("Order", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 violations for Order, got %d", len(got))
	}

	all, err := s.RecentViolations("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("limit must apply, got %d", len(all))
	}
	if all[0].ID < all[1].ID {
		t.Error("recent violations come newest first")
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.PutSpec(&StoredSpec{Name: "Order", Source: "int"}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordViolation(&Violation{SpecName: "Order", Message: "m"}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSpecs != 1 || stats.TotalViolations != 1 {
		t.Errorf("got %+v", stats)
	}
}
