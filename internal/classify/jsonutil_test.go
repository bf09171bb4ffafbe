package classify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain object", input: `{"spam": false}`, want: `{"spam": false}`},
		{name: "json fence", input: "```json\n{\"spam\": false}\n```", want: `{"spam": false}`},
		{name: "bare fence", input: "```\n{\"spam\": true}\n```", want: `{"spam": true}`},
		{name: "fence with trailing prose", input: "```json\n{\"a\": 1}\n```\nHope that helps!", want: `{"a": 1}`},
		{name: "leading prose", input: "Here is the result: {\"a\": 1}", want: `{"a": 1}`},
		{name: "trailing comma", input: `{"items": ["a", "b",],}`, want: `{"items": ["a", "b"]}`},
		{name: "no object", input: "no json here", want: ""},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, json.Valid([]byte(got)), "extracted JSON must parse")
			}
		})
	}
}
