// Package normalize parses free-form currency and date strings, fingerprints records
// and drops duplicates within a processing window.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

const (
	lakh  = 100_000
	crore = 10_000_000
	thou  = 1_000
)

var (
	currencySymbols = strings.NewReplacer("₹", "", "$", "", ",", "")
	lakhSuffix      = regexp.MustCompile(`lakhs|lacs|lakh|lac`)
	croreSuffix     = regexp.MustCompile(`crores|crore|cr`)
)

// dateLayouts are tried in order; the first full match wins.
var dateLayouts = []string{
	"2-1-2006",
	"2/1/2006",
	"2006-1-2",
	"2-Jan-2006",
	"2 Jan 2006",
}

// ParseCurrency converts strings like "50 Lakhs", "1.5 Cr", "₹10k" or "12,500" to an integer amount.
// Suffixes are checked in the order lakh/lac, crore/cr, k; only the first match applies.
// ok is false for empty or unparseable input and for amounts outside the int64 range.
func ParseCurrency(s string) (int64, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, false
	}
	v = currencySymbols.Replace(v)

	mult := 1.0
	switch {
	case strings.Contains(v, "lakh") || strings.Contains(v, "lac"):
		mult = lakh
		v = lakhSuffix.ReplaceAllString(v, "")
	case strings.Contains(v, "cr"):
		mult = crore
		v = croreSuffix.ReplaceAllString(v, "")
	case strings.Contains(v, "k"):
		mult = thou
		v = strings.ReplaceAll(v, "k", "")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits.
	amount := f * mult
	if amount >= math.MaxInt64 || amount < math.MinInt64 {
		return 0, false
	}
	return int64(amount), true
}

// ParseDate converts a date in one of the accepted layouts to YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

// Fingerprint hashes the lowercased, trimmed title and location joined by "|".
func Fingerprint(title, location string) string {
	key := strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(location))
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// Record resolves a raw row through the column aliases and fills the derived fields.
func Record(raw tender.RawRecord, cols tender.Columns) tender.NormalizedRecord {
	rec := tender.NormalizedRecord{
		Raw:         raw,
		Title:       raw.First(cols.Title),
		Description: raw.First(cols.Description),
		Location:    raw.First(cols.Location),
	}
	if rec.Description == "" {
		rec.Description = tender.NoDescription
	}
	if amount, ok := ParseCurrency(raw.First(cols.Amount)); ok {
		rec.AmountNumeric = &amount
	}
	if date, ok := ParseDate(raw.First(cols.Date)); ok {
		rec.DateISO = date
	}
	rec.Fingerprint = Fingerprint(rec.Title, rec.Location)
	rec.ReferenceID = raw.First(cols.ReferenceID)
	if rec.ReferenceID == "" {
		rec.ReferenceID = rec.Fingerprint
	}
	return rec
}

// Records normalizes a window of raw rows, preserving order.
func Records(raws []tender.RawRecord, cols tender.Columns) []tender.NormalizedRecord {
	out := make([]tender.NormalizedRecord, len(raws))
	for i, r := range raws {
		out[i] = Record(r, cols)
	}
	return out
}

// Dedup keeps the first record of each fingerprint and returns the survivors in input
// order together with the number dropped.
func Dedup(records []tender.NormalizedRecord) ([]tender.NormalizedRecord, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]tender.NormalizedRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.Fingerprint]; dup {
			continue
		}
		seen[r.Fingerprint] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
