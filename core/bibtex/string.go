package bibtex

// StringConstant is a named text macro: @string{ key = "text" }. While
// attached to a bibliography it is additionally indexed in the container's
// symbol table under its key, and the lifecycle hooks keep that index
// consistent.
type StringConstant struct {
	element
	key   string
	value *Value
}

// NewStringConstant creates a string constant. The key must be a valid
// symbolic name; an invalid key fails with a CoercionError.
func NewStringConstant(key string, value *Value) (*StringConstant, error) {
	if err := validateSymbolName(key); err != nil {
		return nil, err
	}
	return &StringConstant{key: key, value: value}, nil
}

// Key returns the constant's symbolic name.
func (s *StringConstant) Key() string {
	return s.key
}

// SetKey renames the constant. The new key is validated before any state
// changes; while attached, the old symbol-table entry is removed and the
// new one installed before SetKey returns, so no caller observes a table
// holding both or neither.
func (s *StringConstant) SetKey(key string) error {
	if err := validateSymbolName(key); err != nil {
		return err
	}
	if s.bib != nil {
		s.bib.rekeyString(s, s.key, key)
	}
	s.key = key
	return nil
}

// Value returns the constant's value expression.
func (s *StringConstant) Value() *Value {
	return s.value
}

// SetValue replaces the constant's value expression.
func (s *StringConstant) SetValue(v *Value) {
	s.value = v
}

// Kind returns KindStringConstant.
func (s *StringConstant) Kind() Kind {
	return KindStringConstant
}

// Type returns "string_constant".
func (s *StringConstant) Type() string {
	return TypeStringConstant
}

// HasType reports whether candidate names this variant ("string" and
// "string_constant" both do) or equals the type name.
func (s *StringConstant) HasType(candidate string) bool {
	return matchType(KindStringConstant, TypeStringConstant, candidate)
}

// Content returns `key = "rendered value"`.
func (s *StringConstant) Content() string {
	return s.key + " = " + s.value.Render(DoubleQuotes)
}

// Text returns `@string{ key = "rendered value" }`.
func (s *StringConstant) Text() string {
	return "@string{ " + s.Content() + " }"
}

// Structured nests the rendered value under a "string" key mapping the
// bare name, overriding the generic {type: content} shape.
func (s *StringConstant) Structured() map[string]any {
	return map[string]any{
		"string": map[string]string{
			s.key: s.value.Render(DoubleQuotes),
		},
	}
}

// Field exposes "key" and "value".
func (s *StringConstant) Field(name string) (string, bool) {
	switch name {
	case "key":
		return s.key, true
	case "value":
		return s.value.String(), true
	default:
		return "", false
	}
}

// AddedTo attaches the constant and installs its symbol-table entry.
func (s *StringConstant) AddedTo(b *Bibliography) error {
	if err := s.element.AddedTo(b); err != nil {
		return err
	}
	b.registerString(s)
	return nil
}

// RemovedFrom detaches the constant and removes its symbol-table entry.
func (s *StringConstant) RemovedFrom(b *Bibliography) error {
	if err := s.element.RemovedFrom(b); err != nil {
		return err
	}
	b.unregisterString(s)
	return nil
}

// Expand resolves symbol references in the value through r.
func (s *StringConstant) Expand(r Resolver) Element {
	s.value = s.value.Expand(r)
	return s
}

// Join merges adjacent literal tokens in the value.
func (s *StringConstant) Join() Element {
	s.value = s.value.Join()
	return s
}
