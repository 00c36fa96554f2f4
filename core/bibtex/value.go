package bibtex

import (
	"strings"
)

// TokenKind identifies how a value token was written in the source and how
// it renders back out.
type TokenKind int

const (
	// TokenLiteral is plain text, written as a "quoted" string or a bare
	// number. Renders wrapped in the active quote style.
	TokenLiteral TokenKind = iota
	// TokenBraced is brace-delimited text ({...}). Braces protect the
	// content, so it always renders back inside braces and is never
	// re-quoted.
	TokenBraced
	// TokenSymbol is a reference to a string constant by name. Renders
	// bare and resolves during expansion.
	TokenSymbol
)

// Token is one part of a value expression. The Text of a literal or braced
// token excludes its outer delimiters; inner braces are preserved verbatim.
type Token struct {
	Kind TokenKind
	Text string
}

// QuoteStyle configures how literal tokens are wrapped when a value is
// rendered.
type QuoteStyle struct {
	Open  string
	Close string
}

// Predefined quote styles.
var (
	// DoubleQuotes wraps literals in double quotes ("text").
	DoubleQuotes = QuoteStyle{Open: `"`, Close: `"`}
	// Braces wraps literals in braces ({text}).
	Braces = QuoteStyle{Open: "{", Close: "}"}
	// NoQuotes leaves literals bare.
	NoQuotes = QuoteStyle{}
)

// Resolver looks up a string constant by name during value expansion.
// Bibliography implements it over its symbol table.
type Resolver interface {
	ResolveString(name string) (*Value, bool)
}

// Value is an ordered sequence of tokens forming one BibTeX value
// expression: a literal, a symbol, or a concatenation of both kinds
// joined with #.
type Value struct {
	tokens []Token
}

// NewValue creates a value from an explicit token sequence.
func NewValue(tokens ...Token) *Value {
	return &Value{tokens: tokens}
}

// NewLiteral creates a single-token literal value.
func NewLiteral(text string) *Value {
	return &Value{tokens: []Token{{Kind: TokenLiteral, Text: text}}}
}

// NewBraced creates a single-token braced value.
func NewBraced(text string) *Value {
	return &Value{tokens: []Token{{Kind: TokenBraced, Text: text}}}
}

// NewSymbol creates a single-token symbol value referencing a string
// constant.
func NewSymbol(name string) *Value {
	return &Value{tokens: []Token{{Kind: TokenSymbol, Text: name}}}
}

// Tokens returns a copy of the token sequence.
func (v *Value) Tokens() []Token {
	if v == nil {
		return nil
	}
	out := make([]Token, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Append adds tokens to the end of the value.
func (v *Value) Append(tokens ...Token) *Value {
	v.tokens = append(v.tokens, tokens...)
	return v
}

// Render returns the value in .bib source form: literal tokens wrapped in
// the quote style, braced tokens in braces, symbols bare, all joined
// with " # ". A nil or empty value renders as an empty literal.
func (v *Value) Render(q QuoteStyle) string {
	if v == nil || len(v.tokens) == 0 {
		return q.Open + q.Close
	}
	parts := make([]string, 0, len(v.tokens))
	for _, t := range v.tokens {
		switch t.Kind {
		case TokenSymbol:
			parts = append(parts, t.Text)
		case TokenBraced:
			parts = append(parts, "{"+t.Text+"}")
		default:
			parts = append(parts, q.Open+t.Text+q.Close)
		}
	}
	return strings.Join(parts, " # ")
}

// String returns the plain text of the value: outer delimiters stripped,
// symbols by name, tokens joined with " # ". This is the form used for
// field comparisons in the query DSL.
func (v *Value) String() string {
	if v == nil || len(v.tokens) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.tokens))
	for _, t := range v.tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " # ")
}

// IsAtomic reports whether the value is a single token or empty.
func (v *Value) IsAtomic() bool {
	return v == nil || len(v.tokens) <= 1
}

// HasSymbols reports whether any token is an unresolved symbol.
func (v *Value) HasSymbols() bool {
	if v == nil {
		return false
	}
	for _, t := range v.tokens {
		if t.Kind == TokenSymbol {
			return true
		}
	}
	return false
}

// Expand returns a new value with every symbol token that r resolves
// replaced by the referenced value's tokens. Unresolvable symbols are
// preserved as-is. The receiver is not modified.
func (v *Value) Expand(r Resolver) *Value {
	if v == nil {
		return nil
	}
	out := make([]Token, 0, len(v.tokens))
	for _, t := range v.tokens {
		if t.Kind == TokenSymbol && r != nil {
			if resolved, ok := r.ResolveString(t.Text); ok {
				out = append(out, resolved.Tokens()...)
				continue
			}
		}
		out = append(out, t)
	}
	return &Value{tokens: out}
}

// Join returns a new value with adjacent non-symbol tokens merged into
// single literals. Symbols break runs. The receiver is not modified.
func (v *Value) Join() *Value {
	if v == nil {
		return nil
	}
	out := make([]Token, 0, len(v.tokens))
	for _, t := range v.tokens {
		if t.Kind != TokenSymbol && len(out) > 0 && out[len(out)-1].Kind != TokenSymbol {
			out[len(out)-1] = Token{Kind: TokenLiteral, Text: out[len(out)-1].Text + t.Text}
			continue
		}
		out = append(out, t)
	}
	return &Value{tokens: out}
}

// EqualValues reports whether two values have identical token sequences.
func EqualValues(a, b *Value) bool {
	at, bt := a.Tokens(), b.Tokens()
	if len(at) != len(bt) {
		return false
	}
	for i := range at {
		if at[i] != bt[i] {
			return false
		}
	}
	return true
}
