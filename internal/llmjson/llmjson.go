// Package llmjson decodes structured JSON answers from chat completion models.
package llmjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecode marks a completion whose text is not a valid answer object.
var ErrDecode = errors.New("decode completion")

// StripFences removes a surrounding markdown code fence (```json ... ``` or ``` ... ```).
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (e.g. "json") up to the first newline.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DecodeStrict strips fences and decodes exactly one JSON object into dst.
// Unknown keys, mistyped values and trailing data are errors wrapping ErrDecode.
func DecodeStrict(text string, dst any) error {
	body := StripFences(text)
	if body == "" {
		return fmt.Errorf("%w: empty response", ErrDecode)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after object", ErrDecode)
	}
	return nil
}
