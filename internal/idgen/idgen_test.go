package idgen

import (
	"regexp"
	"testing"
)

func TestPlanIDShape(t *testing.T) {
	pattern := regexp.MustCompile(`^pln_[a-zA-Z0-9]{12}$`)
	for i := 0; i < 100; i++ {
		id, err := Plan()
		if err != nil {
			t.Fatalf("Plan: %v", err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("Plan() = %q", id)
		}
	}
}

func TestIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 5000; i++ {
		id, err := Event()
		if err != nil {
			t.Fatalf("Event: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id after %d: %s", i, id)
		}
		seen[id] = true
	}
}
