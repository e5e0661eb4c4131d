package memory

import (
	"errors"
	"testing"

	"github.com/Wyydra/ya-signal/internal/core/domain"
)

func TestConnectionRegistry(t *testing.T) {
	r := NewConnectionRegistry()
	a := domain.NewConnectionID()
	b := domain.NewConnectionID()

	if err := r.Insert(a, "alice"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := r.Insert(b, "alice"); !errors.Is(err, domain.ErrDisplayIDTaken) {
		t.Fatalf("duplicate display id: err=%v, want %v", err, domain.ErrDisplayIDTaken)
	}
	if got, ok := r.FindByDisplayID("alice"); !ok || got != a {
		t.Fatalf("FindByDisplayID=%v,%v", got, ok)
	}

	if display, ok := r.Remove(a); !ok || display != "alice" {
		t.Fatalf("Remove=%q,%v", display, ok)
	}
	if _, ok := r.Remove(a); ok {
		t.Fatalf("second Remove reported success")
	}
	if _, ok := r.FindByDisplayID("alice"); ok {
		t.Fatalf("display id still resolvable after remove")
	}

	if err := r.Insert(b, "alice"); err != nil {
		t.Fatalf("reuse after disconnect: %v", err)
	}
	if r.Len() != 1 || len(r.ConnectionIDs()) != 1 {
		t.Fatalf("Len=%d", r.Len())
	}
}
