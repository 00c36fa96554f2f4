package bibtex

// Preamble is one literal or concatenation expression emitted verbatim
// before the entries of a .bib file: @preamble{ "text" }. It has no key.
type Preamble struct {
	element
	value *Value
}

// NewPreamble creates a preamble holding the given value expression.
func NewPreamble(value *Value) *Preamble {
	return &Preamble{value: value}
}

// Value returns the preamble's value expression.
func (p *Preamble) Value() *Value {
	return p.value
}

// SetValue replaces the preamble's value expression.
func (p *Preamble) SetValue(v *Value) {
	p.value = v
}

// Kind returns KindPreamble.
func (p *Preamble) Kind() Kind {
	return KindPreamble
}

// Type returns "preamble".
func (p *Preamble) Type() string {
	return TypePreamble
}

// HasType reports whether candidate names this variant.
func (p *Preamble) HasType(candidate string) bool {
	return matchType(KindPreamble, TypePreamble, candidate)
}

// Content returns the rendered value, double-quoted.
func (p *Preamble) Content() string {
	return p.value.Render(DoubleQuotes)
}

// Text returns `@preamble{ "rendered value" }`.
func (p *Preamble) Text() string {
	return "@preamble{ " + p.Content() + " }"
}

// Structured returns the generic {type: content} shape.
func (p *Preamble) Structured() map[string]any {
	return map[string]any{TypePreamble: p.Content()}
}

// Field exposes "value".
func (p *Preamble) Field(name string) (string, bool) {
	if name == "value" {
		return p.value.String(), true
	}
	return "", false
}

// Expand resolves symbol references in the value through r.
func (p *Preamble) Expand(r Resolver) Element {
	p.value = p.value.Expand(r)
	return p
}

// Join merges adjacent literal tokens in the value.
func (p *Preamble) Join() Element {
	p.value = p.value.Join()
	return p
}
