package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"inline json fence", "```json{\"a\":1}```", `{"a":1}`},
		{"surrounding space", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

type answer struct {
	Domain string   `json:"domain"`
	Tags   []string `json:"tags"`
}

func TestDecodeStrict(t *testing.T) {
	var a answer
	require.NoError(t, DecodeStrict("```json\n{\"domain\":\"Energy\",\"tags\":[\"Solar Power\"]}\n```", &a))
	assert.Equal(t, "Energy", a.Domain)
	assert.Equal(t, []string{"Solar Power"}, a.Tags)
}

func TestDecodeStrict_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", "  "},
		{"not json", "Sure! Here is the answer"},
		{"unknown key", `{"domain":"Energy","confidence":0.9}`},
		{"wrong type", `{"domain":["Energy"]}`},
		{"trailing data", `{"domain":"Energy"} {"domain":"Other"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a answer
			err := DecodeStrict(tt.in, &a)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}
