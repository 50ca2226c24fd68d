// Package schema describes the indices amanrdf writes: the base index,
// one property index per configured alias, and the optional extended index.
package schema

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/document"
)

// Role tells what an index holds.
type Role string

const (
	RoleBase     Role = "base"
	RoleProperty Role = "property"
	RoleExtended Role = "extended"
)

// FieldType controls how a backend stores and analyzes a field.
type FieldType string

const (
	// Text is tokenized for keyword search.
	Text FieldType = "text"
	// Keyword is matched as a whole value.
	Keyword FieldType = "keyword"
	// Stored is kept with the document but not searchable.
	Stored FieldType = "stored"
)

var validTypes = map[FieldType]bool{
	Text:    true,
	Keyword: true,
	Stored:  true,
}

// Field is one mapped document field.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type" yaml:"type"`
}

// Searchable reports whether the field takes part in full-text queries.
func (f Field) Searchable() bool {
	return f.Type == Text
}

// Schema is the mapping of one index.
type Schema struct {
	Index  string  `json:"index" yaml:"index"`
	Role   Role    `json:"role" yaml:"role"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SearchFields returns the names of the Text fields in mapping order.
func (s Schema) SearchFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Searchable() {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks that the schema has a name, known field types and no
// duplicate field names.
func (s Schema) Validate() error {
	if err := ValidateName(s.Index); err != nil {
		return err
	}
	switch s.Role {
	case RoleBase, RoleProperty, RoleExtended:
	default:
		return fmt.Errorf("index %s: unknown role %q", s.Index, s.Role)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("index %s: no fields", s.Index)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("index %s: field with empty name", s.Index)
		}
		if seen[f.Name] {
			return fmt.Errorf("index %s: duplicate field %s", s.Index, f.Name)
		}
		if !validTypes[f.Type] {
			return fmt.Errorf("index %s: field %s has unknown type %q", s.Index, f.Name, f.Type)
		}
		seen[f.Name] = true
	}
	return nil
}

// ValidateName rejects index names that are empty or could escape a
// backend's data directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("index name is empty")
	}
	if strings.ContainsAny(name, " \t\n/\\") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid index name %q", name)
	}
	return nil
}

// BaseOptions selects which base fields are searched.
type BaseOptions struct {
	// IncludeURI searches the subject and predicate keywords, which are
	// always cut from URIs. Object keywords may come from literals and
	// are searched either way.
	IncludeURI bool
	// IncludeNamespace searches the three namespace fields.
	IncludeNamespace bool
}

// BaseOptionsFrom maps the base index configuration.
func BaseOptionsFrom(b config.BaseConfig) BaseOptions {
	return BaseOptions{IncludeURI: b.IncludeURI, IncludeNamespace: b.IncludeNamespace}
}

// baseFields lists the six base fields. Fields left out of the search by
// opts are still stored.
func baseFields(opts BaseOptions) []Field {
	uri, ns := Stored, Stored
	if opts.IncludeURI {
		uri = Text
	}
	if opts.IncludeNamespace {
		ns = Text
	}
	return []Field{
		{Name: document.FieldSubjectKeywords, Type: uri},
		{Name: document.FieldPredicateKeywords, Type: uri},
		{Name: document.FieldObjectKeywords, Type: Text},
		{Name: document.FieldSubjectNamespaces, Type: ns},
		{Name: document.FieldPredicateNamespaces, Type: ns},
		{Name: document.FieldObjectNamespaces, Type: ns},
	}
}

// Base returns the mapping of a base index with URI keywords searched.
func Base(name string, includeNamespace bool) Schema {
	return BaseWith(name, BaseOptions{IncludeURI: true, IncludeNamespace: includeNamespace})
}

// BaseWith returns the mapping of the base index for opts.
func BaseWith(name string, opts BaseOptions) Schema {
	return Schema{Index: name, Role: RoleBase, Fields: baseFields(opts)}
}

// Property returns the mapping of the property index for alias. The
// resource_terms field is matched exactly since lookups compare whole
// subject keywords.
func Property(alias string) Schema {
	return Schema{
		Index: alias,
		Role:  RoleProperty,
		Fields: []Field{
			{Name: document.FieldResourceTerms, Type: Keyword},
			{Name: alias, Type: Text},
		},
	}
}

// Extended returns the mapping of the extended index: the base fields
// plus the enabled "<alias>_sub" and "<alias>_obj" fields.
func Extended(name string, base BaseOptions, fields *config.FieldMap, opts document.ExtendedOptions) Schema {
	s := Schema{Index: name, Role: RoleExtended, Fields: baseFields(base)}
	for _, alias := range fields.Aliases() {
		if opts.IncludeSubject {
			s.Fields = append(s.Fields, Field{Name: document.SubjectField(alias), Type: Text})
		}
		if opts.IncludeObject {
			s.Fields = append(s.Fields, Field{Name: document.ObjectField(alias), Type: Text})
		}
	}
	return s
}

// Set is every index one configuration writes to.
type Set struct {
	Base       Schema
	Properties []Schema
	Extended   *Schema
}

// All returns the schemas in creation order: base, properties, extended.
func (s Set) All() []Schema {
	all := []Schema{s.Base}
	all = append(all, s.Properties...)
	if s.Extended != nil {
		all = append(all, *s.Extended)
	}
	return all
}

// FromConfig derives the index set of a validated configuration. Property
// indices and the extended index exist only when extended indexing is
// enabled.
func FromConfig(cfg *config.Config) Set {
	ix := cfg.Indexing
	base := BaseOptionsFrom(ix.Base)
	set := Set{Base: BaseWith(ix.Base.Name, base)}
	if !ix.Extended.Enabled {
		return set
	}

	fields := cfg.Fields()
	for _, alias := range fields.Aliases() {
		set.Properties = append(set.Properties, Property(alias))
	}
	ext := Extended(ix.Extended.Name, base, fields, document.ExtendedOptions{
		IncludeSubject: ix.Extended.IncludeSubject,
		IncludeObject:  ix.Extended.IncludeObject,
	})
	set.Extended = &ext
	return set
}
