package buildinfo

import "testing"

func TestString(t *testing.T) {
	Version, Commit, BuiltAt = "1.2.0", "abc123", "2025-09-07"
	defer func() { Version, Commit, BuiltAt = "dev", "", "" }()
	if got := String(); got != "cargoplan 1.2.0 (abc123) built 2025-09-07" {
		t.Fatalf("String()=%q", got)
	}
	if Info()["commit"] != "abc123" {
		t.Fatalf("info %+v", Info())
	}
}
