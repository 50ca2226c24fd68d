// Package document turns parsed triples into index documents.
package document

import (
	"context"

	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/triple"
)

// Field names shared by base and extended documents.
const (
	FieldSubjectKeywords     = "subjectKeywords"
	FieldPredicateKeywords   = "predicateKeywords"
	FieldObjectKeywords      = "objectKeywords"
	FieldSubjectNamespaces   = "subjectNspaceKeys"
	FieldPredicateNamespaces = "predicateNspaceKeys"
	FieldObjectNamespaces    = "objectNspaceKeys"

	// FieldResourceTerms holds the subject keyword in property documents.
	FieldResourceTerms = "resource_terms"
)

// Doc is the wire form of any document sent to a backend.
type Doc map[string]any

// Base is the one-per-triple document of the base index.
type Base struct {
	SubjectKeywords     string `json:"subjectKeywords"`
	PredicateKeywords   string `json:"predicateKeywords"`
	ObjectKeywords      string `json:"objectKeywords"`
	SubjectNspaceKeys   string `json:"subjectNspaceKeys"`
	PredicateNspaceKeys string `json:"predicateNspaceKeys"`
	ObjectNspaceKeys    string `json:"objectNspaceKeys"`
}

// NewBase copies the terms of t into a Base.
func NewBase(t triple.Triple) Base {
	return Base{
		SubjectKeywords:     t.Subject.Keyword,
		PredicateKeywords:   t.Predicate.Keyword,
		ObjectKeywords:      t.Object.Keyword,
		SubjectNspaceKeys:   t.Subject.Namespace,
		PredicateNspaceKeys: t.Predicate.Namespace,
		ObjectNspaceKeys:    t.Object.Namespace,
	}
}

// Doc returns b as a Doc.
func (b Base) Doc() Doc {
	return Doc{
		FieldSubjectKeywords:     b.SubjectKeywords,
		FieldPredicateKeywords:   b.PredicateKeywords,
		FieldObjectKeywords:      b.ObjectKeywords,
		FieldSubjectNamespaces:   b.SubjectNspaceKeys,
		FieldPredicateNamespaces: b.PredicateNspaceKeys,
		FieldObjectNamespaces:    b.ObjectNspaceKeys,
	}
}

// Property links a subject to one configured predicate's object. It is
// stored in the index named Alias.
type Property struct {
	Alias   string
	Subject string
	Value   string
}

// Doc returns {"resource_terms": Subject, Alias: Value}.
func (p Property) Doc() Doc {
	return Doc{
		FieldResourceTerms: p.Subject,
		p.Alias:            p.Value,
	}
}

// Builder makes base and property documents. It holds no mutable state
// and may be shared.
type Builder struct {
	fields     *config.FieldMap
	properties bool
}

// NewBuilder returns a Builder. Property documents are produced only when
// propertiesEnabled is set and fields has an entry for the predicate.
func NewBuilder(fields *config.FieldMap, propertiesEnabled bool) *Builder {
	return &Builder{fields: fields, properties: propertiesEnabled}
}

// Build always returns a Base. The Property is non-nil iff the raw
// predicate exactly equals a configured predicate.
func (b *Builder) Build(t triple.Triple) (Base, *Property) {
	base := NewBase(t)
	if !b.properties {
		return base, nil
	}
	alias, ok := b.fields.AliasFor(t.Raw[1])
	if !ok {
		return base, nil
	}
	return base, &Property{
		Alias:   alias,
		Subject: t.Subject.Keyword,
		Value:   t.Object.Keyword,
	}
}

// Lookup finds the values stored for keyword in the property index alias.
type Lookup interface {
	Values(ctx context.Context, alias, keyword string) ([]string, error)
}

// ExtendedOptions selects which property values an extended document
// carries.
type ExtendedOptions struct {
	IncludeSubject bool
	IncludeObject  bool
}

// ExtendedBuilder makes extended documents: the base fields plus, per
// alias, "<alias>_sub" with the subject's property values and
// "<alias>_obj" with the object's property values.
type ExtendedBuilder struct {
	aliases []string
	opts    ExtendedOptions
	lookup  Lookup
}

// NewExtendedBuilder returns an ExtendedBuilder over the aliases of fields.
func NewExtendedBuilder(fields *config.FieldMap, opts ExtendedOptions, lookup Lookup) *ExtendedBuilder {
	return &ExtendedBuilder{aliases: fields.Aliases(), opts: opts, lookup: lookup}
}

// SubjectField returns the extended field name for alias values of the subject.
func SubjectField(alias string) string { return alias + "_sub" }

// ObjectField returns the extended field name for alias values of the object.
func ObjectField(alias string) string { return alias + "_obj" }

// Build returns the extended document for t. Fields with no values are
// left out. Object lookups are done only for URI objects.
func (b *ExtendedBuilder) Build(ctx context.Context, t triple.Triple) (Doc, error) {
	doc := NewBase(t).Doc()
	for _, alias := range b.aliases {
		if b.opts.IncludeSubject {
			vals, err := b.lookup.Values(ctx, alias, t.Subject.Keyword)
			if err != nil {
				return nil, err
			}
			if len(vals) > 0 {
				doc[SubjectField(alias)] = vals
			}
		}
		if b.opts.IncludeObject && t.Object.Kind == triple.URI {
			vals, err := b.lookup.Values(ctx, alias, t.Object.Keyword)
			if err != nil {
				return nil, err
			}
			if len(vals) > 0 {
				doc[ObjectField(alias)] = vals
			}
		}
	}
	return doc, nil
}
