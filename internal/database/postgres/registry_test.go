package postgres

import (
	"slices"
	"testing"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Photos/", "Photos/"},
		{"Photos_", `Photos\_`},
		{"100%", `100\%`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPendingMigrations(t *testing.T) {
	all, err := pendingMigrations(nil)
	if err != nil {
		t.Fatalf("pendingMigrations failed: %v", err)
	}
	if len(all) < 2 || !slices.IsSorted(all) {
		t.Fatalf("expected sorted embedded migrations, got %v", all)
	}

	rest, err := pendingMigrations(all[:1])
	if err != nil {
		t.Fatalf("pendingMigrations failed: %v", err)
	}
	if slices.Contains(rest, all[0]) {
		t.Errorf("applied migration %s still pending", all[0])
	}
	if len(rest) != len(all)-1 {
		t.Errorf("expected %d pending, got %d", len(all)-1, len(rest))
	}
}
