package core

import (
	"fmt"
	"regexp"
	"strconv"
)

// MaxSequenceSuffix is the sanity ceiling for parsed numeric suffixes. Anything above it
// is a timestamp-style fallback number or corrupted data, not part of the sequence.
const MaxSequenceSuffix = 1_000_000

var trailingDigits = regexp.MustCompile(`(\d+)\D*$`)

// NumberSuffix extracts the trailing numeric run of a document number ("INV-0042" → 42).
// ok is false when there is no digit run or the value exceeds MaxSequenceSuffix.
func NumberSuffix(number string) (int64, bool) {
	m := trailingDigits.FindStringSubmatch(number)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n > MaxSequenceSuffix {
		return 0, false
	}
	return n, true
}

// NextSequence returns one more than the highest valid suffix among existing numbers.
// Invoices and estimates share one sequence.
func NextSequence(existing []string) int64 {
	var max int64
	for _, num := range existing {
		if n, ok := NumberSuffix(num); ok && n > max {
			max = n
		}
	}
	return max + 1
}

// FormatNumber renders seq with the configured prefix and zero padding.
func FormatNumber(prefix string, padding int, seq int64) string {
	if padding < 1 {
		padding = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, seq)
}

// NextNumber produces the next human-facing number for kind.
func NextNumber(kind DocumentKind, existing []string, settings BusinessSettings) string {
	prefix := settings.InvoicePrefix
	if kind == KindEstimate {
		prefix = settings.EstimatePrefix
	}
	return FormatNumber(prefix, settings.NumberPadding, NextSequence(existing))
}
