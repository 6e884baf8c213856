package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"50 Lakhs", 5_000_000, true},
		{"1.5 Cr", 15_000_000, true},
		{"10k", 10_000, true},
		{"₹ 2,50,000", 250_000, true},
		{"$1,200", 1_200, true},
		{"3 lac", 300_000, true},
		{"2 Crores", 20_000_000, true},
		{"12.7", 12, true},
		{"Invalid", 0, false},
		{"", 0, false},
		{"   ", 0, false},
		{"NaN", 0, false},
		{"lakh", 0, false},
		{"99999999999999 crore", 0, false},
		{"922337203685477 lakh", 0, false},
		{"1e30", 0, false},
		{"-1e30", 0, false},
		{"9000000000000 lakh", 900_000_000_000_000_000, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCurrency(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseCurrency_IdempotentOnOutput(t *testing.T) {
	for _, in := range []string{"50 Lakhs", "1.5 Cr", "10k", "₹ 7,25,000", "999"} {
		first, ok := ParseCurrency(in)
		require.True(t, ok, in)

		again, ok := ParseCurrency(strconv.FormatInt(first, 10))
		require.True(t, ok, in)
		assert.Equal(t, first, again, in)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"15-Jan-2025", "2025-01-15", true},
		{"15-01-2025", "2025-01-15", true},
		{"5/3/2024", "2024-03-05", true},
		{"2024-03-05", "2024-03-05", true},
		{"15 Jan 2025", "2025-01-15", true},
		{" 15-jan-2025 ", "2025-01-15", true},
		{"Invalid", "", false},
		{"2025/01/15", "", false},
		{"31-02-2025", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprint_CaseAndWhitespaceInvariant(t *testing.T) {
	pairs := [][2]string{
		{"Road Construction", "Delhi"},
		{"Supply of Medicines", "Tamil Nadu"},
		{"", ""},
	}
	for _, p := range pairs {
		title, loc := p[0], p[1]
		assert.Equal(t,
			Fingerprint(title, loc),
			Fingerprint(strings.ToUpper(title)+" ", " "+strings.ToLower(loc)),
			"%q/%q", title, loc)
	}
}

func TestFingerprint_NoCollisions(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 500; i++ {
		for _, loc := range []string{"Delhi", "Mumbai", "Pune"} {
			key := fmt.Sprintf("tender %d|%s", i, loc)
			fp := Fingerprint(fmt.Sprintf("Tender %d", i), loc)
			if prev, ok := seen[fp]; ok {
				t.Fatalf("collision between %q and %q", prev, key)
			}
			seen[fp] = key
		}
	}
	assert.Len(t, Fingerprint("a", "b"), 64)
}

func TestRecord(t *testing.T) {
	raw := tender.RawRecord{
		"Summary":  "Road Construction",
		"Country":  "India",
		"Amount":   "1.5 Cr",
		"Date":     "15-Jan-2025",
		"RefNo":    "",
		"Unmapped": "kept",
	}

	rec := Record(raw, tender.DefaultColumns())

	assert.Equal(t, "Road Construction", rec.Title)
	assert.Equal(t, tender.NoDescription, rec.Description)
	assert.Equal(t, "India", rec.Location)
	require.NotNil(t, rec.AmountNumeric)
	assert.Equal(t, int64(15_000_000), *rec.AmountNumeric)
	assert.Equal(t, "2025-01-15", rec.DateISO)
	assert.Equal(t, Fingerprint("Road Construction", "India"), rec.Fingerprint)
	assert.Equal(t, rec.Fingerprint, rec.ReferenceID, "reference id falls back to fingerprint")
	assert.Equal(t, "kept", rec.Raw["Unmapped"])
}

func TestRecord_UnparseableFieldsAbsent(t *testing.T) {
	rec := Record(tender.RawRecord{"Title": "X", "Amount": "TBD", "Date": "soon", "RefNo": "R-9"}, tender.DefaultColumns())

	assert.Nil(t, rec.AmountNumeric)
	assert.Empty(t, rec.DateISO)
	assert.Equal(t, "R-9", rec.ReferenceID)
}

func TestDedup(t *testing.T) {
	cols := tender.Columns{Title: []string{"Title"}, Location: []string{"Location"}}.WithDefaults()
	records := Records([]tender.RawRecord{
		{"Title": "Road Construction", "Location": "Delhi", "RefNo": "first"},
		{"Title": "road construction ", "Location": " Delhi", "RefNo": "second"},
		{"Title": "Bridge Repair", "Location": "Delhi", "RefNo": "third"},
	}, cols)

	got, dropped := Dedup(records)

	require.Len(t, got, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "first", got[0].ReferenceID)
	assert.Equal(t, "third", got[1].ReferenceID)

	again, droppedAgain := Dedup(got)
	assert.Equal(t, got, again, "dedup is idempotent")
	assert.Zero(t, droppedAgain)
}

func TestDedup_Empty(t *testing.T) {
	got, dropped := Dedup(nil)
	assert.Empty(t, got)
	assert.Zero(t, dropped)
}
