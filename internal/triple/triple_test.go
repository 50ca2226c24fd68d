package triple

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_LiteralObject(t *testing.T) {
	// Given: a triple with a hash predicate and a literal object
	line := `<http://ex.org/a> <http://ex.org/p#rel> "hello"`

	// When: parsing it
	tr, err := ParseLine(line)
	require.NoError(t, err)

	// Then: every term is split as expected
	assert.Equal(t, Term{Keyword: "a", Namespace: "http://ex.org", Kind: URI}, tr.Subject)
	assert.Equal(t, Term{Keyword: "rel", Namespace: "http://ex.org/p", Kind: URI}, tr.Predicate)
	assert.Equal(t, Term{Keyword: "hello", Kind: Literal}, tr.Object)
	assert.Equal(t, "http://ex.org/p#rel", tr.Raw[1])
}

func TestParseLine_Terms(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		subject   Term
		predicate Term
		object    Term
	}{
		{
			name:      "uri object with terminator",
			line:      "<http://dbpedia.org/resource/Crete> <http://dbpedia.org/ontology/country> <http://dbpedia.org/resource/Greece> .\n",
			subject:   Term{Keyword: "Crete", Namespace: "http://dbpedia.org/resource"},
			predicate: Term{Keyword: "country", Namespace: "http://dbpedia.org/ontology"},
			object:    Term{Keyword: "Greece", Namespace: "http://dbpedia.org/resource"},
		},
		{
			name:      "predicate splits on last hash only",
			line:      "<http://x.org/s> <http://x.org/a#b/c#label> <http://x.org/o> .",
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "label", Namespace: "http://x.org/a#b/c"},
			object:    Term{Keyword: "o", Namespace: "http://x.org"},
		},
		{
			name:      "predicate without hash splits on last slash",
			line:      "<http://x.org/s> <http://x.org/terms/name> <http://x.org/o> .",
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "name", Namespace: "http://x.org/terms"},
			object:    Term{Keyword: "o", Namespace: "http://x.org"},
		},
		{
			name:      "leading colon stripped from keyword",
			line:      "<http://x.org/:s> <http://x.org/p> <http://x.org/:o> .",
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "o", Namespace: "http://x.org"},
		},
		{
			name:      "object with hash only",
			line:      "<http://x.org/s> <http://x.org/p> <urn:x#Thing> .",
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "Thing", Namespace: "urn:x"},
		},
		{
			name:      "literal with spaces, language tag and terminator",
			line:      `<http://x.org/s> <http://x.org/p> "Heraklion city"@en .`,
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "Heraklion city", Kind: Literal},
		},
		{
			name:      "typed literal keeps only quoted text",
			line:      `<http://x.org/s> <http://x.org/p> "42"^^<http://www.w3.org/2001/XMLSchema#int> .`,
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "42", Kind: Literal},
		},
		{
			name:      "literal containing slashes has no namespace",
			line:      `<http://x.org/s> <http://x.org/p> "see http://x.org/page" .`,
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "see http://x.org/page", Kind: Literal},
		},
		{
			name:      "tabs and CRLF",
			line:      "<http://x.org/s>\t<http://x.org/p>\t<http://x.org/o> .\r\n",
			subject:   Term{Keyword: "s", Namespace: "http://x.org"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "o", Namespace: "http://x.org"},
		},
		{
			name:      "subject without slash has empty namespace",
			line:      "<urn:isbn:123> <http://x.org/p> <http://x.org/o> .",
			subject:   Term{Keyword: "urn:isbn:123"},
			predicate: Term{Keyword: "p", Namespace: "http://x.org"},
			object:    Term{Keyword: "o", Namespace: "http://x.org"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := ParseLine(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, tr.Subject)
			assert.Equal(t, tt.predicate, tr.Predicate)
			assert.Equal(t, tt.object, tr.Object)
		})
	}
}

func TestParseLine_Skips(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{"blank", "", ErrNoURIMarker},
		{"comment", "# generated by dump", ErrNoURIMarker},
		{"prefix without brackets", "@prefix dc: http://purl.org/dc/terms/ .", ErrNoURIMarker},
		{"two segments", "<http://x.org/s> <http://x.org/p>", ErrMalformedLine},
		{"two segments and spaces", "<http://x.org/s> <http://x.org/p>   \n", ErrMalformedLine},
		{"one segment", "<http://x.org/s>", ErrMalformedLine},
		{"bare object", "<http://x.org/s> <http://x.org/p> plain .", ErrUnclassifiableObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.Is(err, ErrSkip))
		})
	}
}

func TestParseLine_UnclassifiableObjectIsZero(t *testing.T) {
	// Given: a good line followed by one whose object has no separator
	_, err := ParseLine("<http://x.org/s> <http://x.org/p> <http://x.org/stale> .")
	require.NoError(t, err)

	// When: parsing the second line
	tr, err := ParseLine("<http://x.org/s2> <http://x.org/p> blank .")

	// Then: the object is zero, never a previous value
	assert.ErrorIs(t, err, ErrUnclassifiableObject)
	assert.Equal(t, Term{}, tr.Object)
	assert.Equal(t, "s2", tr.Subject.Keyword)
}

func TestTermKind_String(t *testing.T) {
	assert.Equal(t, "uri", URI.String())
	assert.Equal(t, "literal", Literal.String())
}
