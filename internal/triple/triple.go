// Package triple splits raw triple lines into keyword and namespace terms.
//
// The reader is a lenient line heuristic, not an N-Triples or Turtle
// parser: angle brackets mark URIs, double quotes mark literals, and the
// first two whitespace runs separate subject, predicate and object.
package triple

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSkip is wrapped by every error that means "ignore this line".
var ErrSkip = errors.New("skip line")

var (
	// ErrNoURIMarker marks lines without any '<', such as comments,
	// prefixes and blank lines.
	ErrNoURIMarker = fmt.Errorf("%w: no URI marker", ErrSkip)
	// ErrMalformedLine marks lines with fewer than three segments.
	ErrMalformedLine = fmt.Errorf("%w: fewer than three segments", ErrSkip)
	// ErrUnclassifiableObject marks objects that are neither a literal
	// nor a URI with a '/' or '#' separator.
	ErrUnclassifiableObject = fmt.Errorf("%w: unclassifiable object", ErrSkip)
	// ErrLineTooLong marks lines longer than MaxLineSize. They are
	// discarded without parsing.
	ErrLineTooLong = fmt.Errorf("%w: line too long", ErrSkip)
)

// TermKind tells URIs from literals.
type TermKind int

const (
	// URI is a term taken from a bracketed IRI.
	URI TermKind = iota
	// Literal is a quoted value.
	Literal
)

func (k TermKind) String() string {
	if k == Literal {
		return "literal"
	}
	return "uri"
}

// Term is one decomposed triple position.
type Term struct {
	// Keyword is the local name after the separator, or the literal text.
	Keyword string
	// Namespace is everything before the separator; empty for literals
	// and for URIs without a separator.
	Namespace string
	Kind      TermKind
}

// Triple is a parsed line.
type Triple struct {
	// Raw holds subject, predicate and object-with-trailer with the
	// angle brackets removed. Raw[1] is the exact predicate string used
	// for field lookups.
	Raw       [3]string
	Subject   Term
	Predicate Term
	Object    Term
}

// ParseLine decomposes one line. Lines that should be ignored return an
// error wrapping ErrSkip; no other errors are returned. On error the
// returned Triple carries whatever was parsed before the failure and a
// zero Object.
func ParseLine(line string) (Triple, error) {
	var t Triple

	if !strings.Contains(line, "<") {
		return t, ErrNoURIMarker
	}

	line = strings.NewReplacer("<", "", ">", "").Replace(line)
	line = strings.TrimRight(line, "\r\n")

	segs, ok := splitSegments(line)
	if !ok {
		return t, ErrMalformedLine
	}
	t.Raw = segs

	t.Subject = splitURI(segs[0], '/')
	if strings.Contains(segs[1], "#") {
		t.Predicate = splitURI(segs[1], '#')
	} else {
		t.Predicate = splitURI(segs[1], '/')
	}

	obj, err := parseObject(segs[2])
	if err != nil {
		return t, err
	}
	t.Object = obj
	return t, nil
}

// splitSegments cuts s at the first two whitespace runs. The third
// segment keeps the rest of the line verbatim.
func splitSegments(s string) ([3]string, bool) {
	var segs [3]string
	s = strings.TrimLeft(s, " \t")
	for i := 0; i < 2; i++ {
		j := strings.IndexAny(s, " \t")
		if j <= 0 {
			return segs, false
		}
		segs[i] = s[:j]
		s = strings.TrimLeft(s[j:], " \t")
	}
	if s == "" {
		return segs, false
	}
	segs[2] = s
	return segs, true
}

// splitURI splits on the last sep. The keyword loses its leading ':'.
func splitURI(s string, sep byte) Term {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return Term{Keyword: strings.TrimLeft(s, ":"), Kind: URI}
	}
	return Term{
		Keyword:   strings.TrimLeft(s[i+1:], ":"),
		Namespace: s[:i],
		Kind:      URI,
	}
}

// trimTrailer drops the statement terminator and surrounding whitespace.
func trimTrailer(s string) string {
	s = strings.TrimRight(s, " \t")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimRight(s, " \t")
}

func parseObject(raw string) (Term, error) {
	s := trimTrailer(raw)

	switch {
	case strings.Contains(s, `"`):
		first := strings.IndexByte(s, '"')
		last := strings.LastIndexByte(s, '"')
		text := ""
		if last > first {
			text = s[first+1 : last]
		} else {
			text = s[first+1:]
		}
		return Term{Keyword: text, Kind: Literal}, nil
	case strings.Contains(s, "/"):
		return splitURI(s, '/'), nil
	case strings.Contains(s, "#"):
		return splitURI(s, '#'), nil
	}
	return Term{}, ErrUnclassifiableObject
}
