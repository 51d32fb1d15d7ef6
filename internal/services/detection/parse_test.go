package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testforge/uidetect/internal/domain"
)

func TestParseMapperEntries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]MapperEntry
	}{
		{
			name: "fenced json with prose",
			text: "Sure!\n```json\n{\"username\": {\"element_index\": 0, \"confidence\": 0.9, \"reasoning\": \"top input\"}}\n```",
			want: map[string]MapperEntry{"username": {ElementIndex: 0, Confidence: 0.9, Reasoning: "top input"}},
		},
		{
			name: "wrapped in mappings",
			text: `{"mappings": {"submit": {"element_index": 3, "confidence": 0.81}}}`,
			want: map[string]MapperEntry{"submit": {ElementIndex: 3, Confidence: 0.81}},
		},
		{
			name: "non-integral and missing indexes dropped",
			text: `{"a": {"element_index": 1.5, "confidence": 0.9}, "b": {"confidence": 0.9}, "c": {"element_index": "2"}, "d": null, "e": {"element_index": 2, "confidence": 0.95}}`,
			want: map[string]MapperEntry{"e": {ElementIndex: 2, Confidence: 0.95}},
		},
		{
			name: "confidence outside unit range dropped",
			text: `{"a": {"element_index": 0, "confidence": 1.7}, "b": {"element_index": 1, "confidence": -0.1}, "c": {"element_index": 2, "confidence": "high"}, "d": {"element_index": 3, "confidence": 0.7996}}`,
			want: map[string]MapperEntry{"d": {ElementIndex: 3, Confidence: 0.7996}},
		},
		{
			name: "empty object",
			text: `{}`,
			want: map[string]MapperEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMapperEntries(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMapperEntries_NoJSON(t *testing.T) {
	_, err := ParseMapperEntries("I could not find any of the requested fields.")
	assert.Equal(t, domain.ErrCodeMalformedOutput, domain.GetErrorCode(err))
}

func TestParseMapping_CaseInsensitiveKeys(t *testing.T) {
	fields := []Field{ResolveField(FieldPassword, ContextLogin)}
	found, err := parseMapping(`{"Password": {"element_index": 1, "confidence": 0.9}}`, fields, loginLocalization().Elements)
	require.NoError(t, err)
	require.Contains(t, found, FieldPassword)
	assert.Equal(t, 180.0, found[FieldPassword].Y)
	assert.Equal(t, domain.ElementInputPassword, found[FieldPassword].ElementType)
}

func TestParseGenericAnswer(t *testing.T) {
	entry, ok := ParseGenericAnswer(`The button matches. {"found": true, "element_index": 2, "confidence": 0.88, "reasoning": "green CTA"}`)
	require.True(t, ok)
	assert.Equal(t, MapperEntry{ElementIndex: 2, Confidence: 0.88, Reasoning: "green CTA"}, entry)

	_, ok = ParseGenericAnswer(`{"found": false, "element_index": 0, "confidence": 0.9}`)
	assert.False(t, ok)

	_, ok = ParseGenericAnswer(`{"found": true, "element_index": 2, "confidence": 1.7}`)
	assert.False(t, ok)

	_, ok = ParseGenericAnswer(`{"found": true}`)
	assert.False(t, ok)

	_, ok = ParseGenericAnswer(`no idea`)
	assert.False(t, ok)
}

func TestMappingPrompt(t *testing.T) {
	prompt := mappingPrompt(ContextSearch, []Field{ResolveField(FieldSearchInput, ContextSearch)}, "Element 0: input at (10,10) with content 'Search'\n")

	assert.Contains(t, prompt, "screenshot of a search page")
	assert.Contains(t, prompt, "Element 0: input at (10,10)")
	assert.Contains(t, prompt, "- search_input: search query input (hints: search, query")
	assert.Contains(t, prompt, `"element_index"`)

	assert.Contains(t, mappingPrompt(Context("checkout"), nil, ""), "screenshot of a checkout page")
	assert.Contains(t, genericPrompt("blue banner", ""), `"blue banner"`)
}
