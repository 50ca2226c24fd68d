package config

import (
	"fmt"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

// Field pairs a property alias with the full predicate URI it captures.
// The alias also names the property index.
type Field struct {
	Alias     string `yaml:"alias" json:"alias"`
	Predicate string `yaml:"predicate" json:"predicate"`
}

// FieldMap is a bidirectional alias/predicate mapping. Both directions are
// unique, so a predicate resolves to exactly one alias. The zero value is
// an empty map.
type FieldMap struct {
	fields      []Field
	byAlias     map[string]string
	byPredicate map[string]string
}

// NewFieldMap builds a FieldMap, rejecting empty entries and any alias or
// predicate that appears twice.
func NewFieldMap(fields []Field) (*FieldMap, error) {
	m := &FieldMap{
		byAlias:     make(map[string]string, len(fields)),
		byPredicate: make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		if f.Alias == "" || f.Predicate == "" {
			return nil, amerrors.ConfigError(fmt.Sprintf("field %q;%q needs both an alias and a predicate", f.Alias, f.Predicate), nil)
		}
		if prev, ok := m.byAlias[f.Alias]; ok {
			return nil, amerrors.New(amerrors.ErrCodeDuplicateField,
				fmt.Sprintf("alias %q is mapped to both %s and %s", f.Alias, prev, f.Predicate), nil)
		}
		if prev, ok := m.byPredicate[f.Predicate]; ok {
			return nil, amerrors.New(amerrors.ErrCodeDuplicateField,
				fmt.Sprintf("predicate %s is mapped to both %q and %q", f.Predicate, prev, f.Alias), nil).
				WithSuggestion("each predicate may have only one alias")
		}
		m.byAlias[f.Alias] = f.Predicate
		m.byPredicate[f.Predicate] = f.Alias
		m.fields = append(m.fields, f)
	}
	return m, nil
}

// AliasFor returns the alias configured for an exact predicate string.
func (m *FieldMap) AliasFor(predicate string) (string, bool) {
	if m == nil {
		return "", false
	}
	alias, ok := m.byPredicate[predicate]
	return alias, ok
}

// PredicateFor returns the predicate configured for alias.
func (m *FieldMap) PredicateFor(alias string) (string, bool) {
	if m == nil {
		return "", false
	}
	p, ok := m.byAlias[alias]
	return p, ok
}

// Fields returns the entries in configuration order.
func (m *FieldMap) Fields() []Field {
	if m == nil {
		return nil
	}
	out := make([]Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Aliases returns the aliases in configuration order.
func (m *FieldMap) Aliases() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Alias
	}
	return out
}

// Len returns the number of fields.
func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.fields)
}
