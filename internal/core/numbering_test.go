package core_test

import (
	"testing"

	"invoice-agent/internal/core"
)

func TestNumberSuffix(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"INV-0042", 42, true},
		{"EST-7", 7, true},
		{"2024-INV-015", 15, true},
		{"INV-12a", 12, true},
		{"INV-1716400000000", 0, false},
		{"DRAFT", 0, false},
	}
	for _, tt := range tests {
		got, ok := core.NumberSuffix(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NumberSuffix(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNextNumber(t *testing.T) {
	settings := core.DefaultBusinessSettings("user-1")

	tests := []struct {
		name     string
		kind     core.DocumentKind
		existing []string
		want     string
	}{
		{"first invoice", core.KindInvoice, nil, "INV-001"},
		{"after existing", core.KindInvoice, []string{"INV-001", "INV-002"}, "INV-003"},
		{"estimates share the sequence", core.KindEstimate, []string{"INV-004", "EST-002"}, "EST-005"},
		{"timestamp fallback ignored", core.KindInvoice, []string{"INV-1716400000000", "INV-009"}, "INV-010"},
		{"padding overflow keeps digits", core.KindInvoice, []string{"INV-999"}, "INV-1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := core.NextNumber(tt.kind, tt.existing, settings); got != tt.want {
				t.Errorf("NextNumber = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatNumber_CustomPrefix(t *testing.T) {
	if got := core.FormatNumber("ACME/", 5, 12); got != "ACME/00012" {
		t.Errorf("FormatNumber = %q", got)
	}
	if got := core.FormatNumber("X", 0, 3); got != "X3" {
		t.Errorf("FormatNumber with zero padding = %q", got)
	}
}
