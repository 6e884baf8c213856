package tender

import (
	"encoding/binary"
	"math"

	"github.com/kailas-cloud/tenderdex/internal/db"
	domtender "github.com/kailas-cloud/tenderdex/internal/domain/tender"
)

// buildHashFields flattens a Document into HSET fields.
func buildHashFields(doc *domtender.Document) map[string]string {
	m := make(map[string]string, 2+len(doc.Metadata))
	for k, v := range doc.Metadata {
		m[k] = v
	}
	m[db.TextField] = doc.Text
	m[db.VectorField] = vectorToBytes(doc.Vector)
	return m
}

// parseHashFields converts a flat hash back into a Document.
func parseHashFields(id string, m map[string]string) domtender.Document {
	doc := domtender.Document{ID: id, Metadata: make(domtender.Metadata, len(m))}
	for k, v := range m {
		switch k {
		case db.TextField:
			doc.Text = v
		case db.VectorField:
			doc.Vector = bytesToVector(v)
		case db.ScoreField:
		default:
			doc.Metadata[k] = v
		}
	}
	return doc
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
