// Package table reads windows of rows from the delimited source table.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

const utf8BOM = "\ufeff"

// Reader reads the table at Path. Each call reopens the file, so a Reader is safe
// for concurrent use and always sees the current contents.
type Reader struct {
	path      string
	delimiter rune
}

// NewReader creates a reader for a delimited file with a header row.
func NewReader(path, delimiter string) (*Reader, error) {
	if path == "" {
		return nil, errors.New("table path is required")
	}
	d := ','
	if delimiter != "" {
		r, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) || r == utf8.RuneError {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		d = r
	}
	return &Reader{path: path, delimiter: d}, nil
}

// Path returns the source file path.
func (r *Reader) Path() string { return r.path }

// ReadWindow returns up to limit data rows starting at data row offset (0-based,
// header excluded). A window past the end yields no rows and no error.
func (r *Reader) ReadWindow(offset, limit int) ([]tender.RawRecord, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("invalid window offset=%d limit=%d", offset, limit)
	}

	f, cr, header, err := r.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 0; i < offset; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("skip row %d: %w", i, err)
		}
	}

	out := make([]tender.RawRecord, 0, min(limit, 1024))
	for len(out) < limit {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", offset+len(out), err)
		}
		out = append(out, toRecord(header, row))
	}
	return out, nil
}

// Count returns the number of data rows.
func (r *Reader) Count() (int, error) {
	f, cr, _, err := r.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	for {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return 0, fmt.Errorf("count row %d: %w", n, err)
		}
		n++
	}
}

func (r *Reader) open() (*os.File, *csv.Reader, []string, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open table: %w", err)
	}

	cr := csv.NewReader(f)
	cr.Comma = r.delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, fmt.Errorf("table %s has no header row", r.path)
		}
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}
	return f, cr, header, nil
}

// toRecord maps a row onto the header. Short rows leave trailing columns empty;
// extra cells without a header are dropped.
func toRecord(header, row []string) tender.RawRecord {
	rec := make(tender.RawRecord, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(row) {
			rec[name] = row[i]
		} else {
			rec[name] = ""
		}
	}
	return rec
}
