package address_test

import (
	"testing"

	"github.com/MrWong99/sceneforge/internal/address"
	"github.com/MrWong99/sceneforge/internal/agent"
)

func cast() []agent.Character {
	return []agent.Character{
		{ID: "alice", Name: "Alice Vance"},
		{ID: "oskar", Name: "Oskar the Merchant"},
		{ID: "guard-2", Name: "Brannoc"},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	r := address.New(cast())

	tests := []struct {
		target string
		want   string
		ok     bool
	}{
		{"alice", "alice", true},
		{"  ALICE  ", "alice", true},
		{"Alice Vance", "alice", true},
		{"Vance", "alice", true},
		{"guard-2", "guard-2", true},
		{"Captain Alice Vance", "alice", true},
		{"the merchant", "oskar", true},
		{"Oskr", "oskar", true},
		{"Branok", "guard-2", true},
		{"everyone", "", false},
		{"the room", "", false},
		{"", "", false},
		{"Zed", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			got, ok := r.Resolve(tt.target)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.target, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestResolve_SharedNameIsAmbiguous(t *testing.T) {
	t.Parallel()
	r := address.New([]agent.Character{
		{ID: "mira", Name: "Mira Kell"},
		{ID: "tomas", Name: "Tomas Kell"},
	})

	if got, ok := r.Resolve("Kell"); ok {
		t.Errorf("Resolve(Kell) = %q, want no match for a shared surname", got)
	}
	if got, ok := r.Resolve("Mira Kell"); !ok || got != "mira" {
		t.Errorf("Resolve(Mira Kell) = (%q, %v), want mira", got, ok)
	}
}

func TestResolve_Thresholds(t *testing.T) {
	t.Parallel()
	strict := address.New(cast(), address.WithPhoneticThreshold(0.99), address.WithFuzzyThreshold(0.99))
	if got, ok := strict.Resolve("Oskr"); ok {
		t.Errorf("strict Resolve(Oskr) = %q, want no match", got)
	}
	if got, ok := strict.Resolve("oskar"); !ok || got != "oskar" {
		t.Errorf("strict Resolve(oskar) = (%q, %v), exact names must still match", got, ok)
	}
}

func TestResolve_EmptyCast(t *testing.T) {
	t.Parallel()
	if _, ok := address.New(nil).Resolve("anyone"); ok {
		t.Error("empty cast resolved a target")
	}
}
