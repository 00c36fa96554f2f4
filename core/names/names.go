// Package names parses BibTeX name lists: individual names separated by
// the word "and" at brace depth zero, each name in one of the three
// BibTeX forms (First von Last; von Last, First; von Last, Jr, First).
// Brace groups protect their content, so corporate names like
// {Barnes and Noble} parse as a single name.
package names

import (
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// Name is one parsed personal or corporate name.
type Name struct {
	// First is the given name part ("Donald E.").
	First string
	// Prefix is the von part ("van", "de la").
	Prefix string
	// Last is the family name part ("Knuth", "Beethoven").
	Last string
	// Suffix is the generational part ("Jr", "III").
	Suffix string
}

// List is an ordered sequence of names.
type List []Name

// nameGrammar splits one name into its comma-separated segments. The
// case-based classification into First/Prefix/Last happens afterwards.
//
//nolint:govet // participle grammar tags are not standard struct tags
type nameGrammar struct {
	Segments []*nameSegment `@@ ( Comma @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type nameSegment struct {
	Words []string `( @Word | @Braced )*`
}

// nameLexer tokenizes a single name. Braced groups keep their content
// together; one level of inner nesting is supported.
var nameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Braced", Pattern: `\{(?:[^{}]|\{[^{}]*\})*\}`},
	{Name: "Word", Pattern: `[^\s,{}]+`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var nameParser = participle.MustBuild[nameGrammar](
	participle.Lexer(nameLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a BibTeX name list. An empty or blank input yields an
// empty list.
func Parse(s string) (List, error) {
	var list List
	for _, raw := range splitList(s) {
		name, err := parseName(raw)
		if err != nil {
			return nil, err
		}
		list = append(list, name)
	}
	return list, nil
}

// splitList splits a name list on the word "and" at brace depth zero,
// case-insensitively. Empty parts (doubled separators) are dropped.
func splitList(s string) []string {
	var parts []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.Join(current, " "))
			current = nil
		}
	}

	depth := 0
	start := -1
	for i := 0; i <= len(s); i++ {
		var c byte
		if i < len(s) {
			c = s[i]
		}
		isSpace := c == ' ' || c == '\t' || c == '\r' || c == '\n'
		if i == len(s) || (isSpace && depth == 0) {
			if start >= 0 {
				word := s[start:i]
				if strings.EqualFold(word, "and") {
					flush()
				} else {
					current = append(current, word)
				}
				start = -1
			}
			continue
		}
		if start < 0 && i < len(s) {
			start = i
		}
		switch c {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	flush()
	return parts
}

// parseName parses one name using the comma-segmented grammar and the
// BibTeX case rules.
func parseName(s string) (Name, error) {
	parsed, err := nameParser.ParseString("", s)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			return Name{}, &errors.ParseError{
				Line:    pos.Line,
				Column:  pos.Column,
				Message: "invalid name " + strings.TrimSpace(s),
				Err:     err,
			}
		}
		return Name{}, errors.Wrapf(err, "parse name %q", s)
	}

	segments := make([][]string, 0, len(parsed.Segments))
	for _, seg := range parsed.Segments {
		segments = append(segments, seg.Words)
	}

	switch len(segments) {
	case 0:
		return Name{}, nil
	case 1:
		return westernName(segments[0]), nil
	case 2:
		n := vonLastName(segments[0])
		n.First = joinWords(segments[1])
		return n, nil
	default:
		n := vonLastName(segments[0])
		n.Suffix = joinWords(segments[1])
		rest := make([]string, 0)
		for _, seg := range segments[2:] {
			rest = append(rest, seg...)
		}
		n.First = joinWords(rest)
		return n, nil
	}
}

// westernName classifies a comma-less name: the longest run from the
// first to the last lowercase word (excluding the final word) is the von
// part; everything before is First, everything after is Last.
func westernName(words []string) Name {
	if len(words) == 0 {
		return Name{}
	}
	if len(words) == 1 {
		return Name{Last: stripBraces(words[0])}
	}

	firstLower, lastLower := -1, -1
	for i, w := range words[:len(words)-1] {
		if startsLower(w) {
			if firstLower < 0 {
				firstLower = i
			}
			lastLower = i
		}
	}
	if firstLower < 0 {
		return Name{
			First: joinWords(words[:len(words)-1]),
			Last:  joinWords(words[len(words)-1:]),
		}
	}
	return Name{
		First:  joinWords(words[:firstLower]),
		Prefix: joinWords(words[firstLower : lastLower+1]),
		Last:   joinWords(words[lastLower+1:]),
	}
}

// vonLastName classifies the leading segment of a comma form: leading
// lowercase words are the von part, the rest is Last.
func vonLastName(words []string) Name {
	if len(words) == 0 {
		return Name{}
	}
	split := 0
	for split < len(words)-1 && startsLower(words[split]) {
		split++
	}
	return Name{
		Prefix: joinWords(words[:split]),
		Last:   joinWords(words[split:]),
	}
}

// startsLower reports whether the word's first letter is lowercase.
// Braced groups are protected and never count as lowercase.
func startsLower(w string) bool {
	if strings.HasPrefix(w, "{") {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
	}
	return false
}

// stripBraces removes the outer braces from a fully braced word.
func stripBraces(w string) string {
	if len(w) >= 2 && strings.HasPrefix(w, "{") && strings.HasSuffix(w, "}") {
		return w[1 : len(w)-1]
	}
	return w
}

func joinWords(words []string) string {
	stripped := make([]string, len(words))
	for i, w := range words {
		stripped[i] = stripBraces(w)
	}
	return strings.Join(stripped, " ")
}

// String renders the name in the unambiguous "von Last, Suffix, First"
// form.
func (n Name) String() string {
	var sb strings.Builder
	if n.Prefix != "" {
		sb.WriteString(n.Prefix)
		sb.WriteString(" ")
	}
	sb.WriteString(n.Last)
	if n.Suffix != "" {
		sb.WriteString(", ")
		sb.WriteString(n.Suffix)
	}
	if n.First != "" {
		sb.WriteString(", ")
		sb.WriteString(n.First)
	}
	return sb.String()
}

// String renders the list with " and " separators.
func (l List) String() string {
	parts := make([]string, len(l))
	for i, n := range l {
		parts[i] = n.String()
	}
	return strings.Join(parts, " and ")
}
