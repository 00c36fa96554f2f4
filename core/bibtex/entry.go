package bibtex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/CedarBib/core/errors"
	"github.com/FocuswithJustin/CedarBib/core/names"
)

// entryTypes is the set of standard BibTeX entry types. Nonstandard types
// parse and render fine; the set only drives required-field validation.
var entryTypes = map[string]bool{
	"article":       true,
	"book":          true,
	"booklet":       true,
	"conference":    true,
	"inbook":        true,
	"incollection":  true,
	"inproceedings": true,
	"manual":        true,
	"mastersthesis": true,
	"misc":          true,
	"phdthesis":     true,
	"proceedings":   true,
	"techreport":    true,
	"unpublished":   true,
}

// requiredFields lists, per standard entry type, the field groups a
// complete entry must fill. Each inner slice is a set of alternatives:
// one present field satisfies the group.
var requiredFields = map[string][][]string{
	"article":       {{"author"}, {"title"}, {"journal"}, {"year"}},
	"book":          {{"author", "editor"}, {"title"}, {"publisher"}, {"year"}},
	"booklet":       {{"title"}},
	"conference":    {{"author"}, {"title"}, {"booktitle"}, {"year"}},
	"inbook":        {{"author", "editor"}, {"title"}, {"chapter", "pages"}, {"publisher"}, {"year"}},
	"incollection":  {{"author"}, {"title"}, {"booktitle"}, {"publisher"}, {"year"}},
	"inproceedings": {{"author"}, {"title"}, {"booktitle"}, {"year"}},
	"manual":        {{"title"}},
	"mastersthesis": {{"author"}, {"title"}, {"school"}, {"year"}},
	"phdthesis":     {{"author"}, {"title"}, {"school"}, {"year"}},
	"proceedings":   {{"title"}, {"year"}},
	"techreport":    {{"author"}, {"title"}, {"institution"}, {"year"}},
	"unpublished":   {{"author"}, {"title"}, {"note"}},
}

// nameListFields are the fields holding BibTeX name lists.
var nameListFields = map[string]bool{
	"author":     true,
	"editor":     true,
	"translator": true,
}

// Entry is a bibliography record: @article{key, field = value, ...}.
// Field order is preserved for .bib round-tripping. An entry's identifier
// is its citation key, falling back to a lazily generated token while the
// key is empty.
type Entry struct {
	element
	btype  string
	key    string
	order  []string
	fields map[string]*Value
}

// NewEntry creates an entry of the given BibTeX type. The type must be a
// valid symbolic name and is folded to lower case. The key may be empty
// for an entry under construction; a non-empty key must be a valid
// citation key.
func NewEntry(btype, key string) (*Entry, error) {
	btype = strings.ToLower(strings.TrimSpace(btype))
	if err := validateSymbolName(btype); err != nil {
		return nil, err
	}
	if key != "" {
		if err := validateCitationKey(key); err != nil {
			return nil, err
		}
	}
	return &Entry{
		btype:  btype,
		key:    key,
		fields: make(map[string]*Value),
	}, nil
}

// ID returns the citation key, or a lazily generated token while the key
// is empty.
func (e *Entry) ID() string {
	if e.key != "" {
		return e.key
	}
	return e.element.ID()
}

// SetID assigns the citation key, with the same validation as SetKey.
func (e *Entry) SetID(id string) error {
	return e.SetKey(id)
}

// Key returns the citation key, which may be empty.
func (e *Entry) Key() string {
	return e.key
}

// SetKey renames the entry. The new key is validated before any state
// changes; while attached, the container's entry index drops the old key
// and holds the new one before SetKey returns.
func (e *Entry) SetKey(key string) error {
	if err := validateCitationKey(key); err != nil {
		return err
	}
	if e.bib != nil {
		e.bib.rekeyEntry(e, e.key, key)
	}
	e.key = key
	return nil
}

// SetType changes the entry's BibTeX type.
func (e *Entry) SetType(btype string) error {
	btype = strings.ToLower(strings.TrimSpace(btype))
	if err := validateSymbolName(btype); err != nil {
		return err
	}
	e.btype = btype
	return nil
}

// Kind returns KindEntry.
func (e *Entry) Kind() Kind {
	return KindEntry
}

// Type returns the entry's BibTeX type (article, book, ...), overriding
// the derived variant name.
func (e *Entry) Type() string {
	return e.btype
}

// HasType reports whether candidate equals the entry's BibTeX type or
// names the Entry variant ("entry" matches every entry).
func (e *Entry) HasType(candidate string) bool {
	return matchType(KindEntry, e.btype, candidate)
}

// Set assigns a field. The value may be a string, an int, or a *Value;
// field names are folded to lower case and validated as symbolic names.
// Setting an existing field replaces its value in place, preserving
// order; a new field appends.
func (e *Entry) Set(name string, value any) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := validateSymbolName(name); err != nil {
		return err
	}

	var v *Value
	switch val := value.(type) {
	case *Value:
		v = val
	case string:
		v = NewLiteral(val)
	case int:
		v = NewLiteral(strconv.Itoa(val))
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "field %s: unsupported value type %T", name, value)
	}

	if _, exists := e.fields[name]; !exists {
		e.order = append(e.order, name)
	}
	e.fields[name] = v
	return nil
}

// GetField returns the named field's value expression.
func (e *Entry) GetField(name string) (*Value, bool) {
	v, ok := e.fields[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// DeleteField removes a field, preserving the order of the rest.
func (e *Entry) DeleteField(name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := e.fields[name]; !ok {
		return
	}
	delete(e.fields, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// FieldNames returns the field names in insertion order.
func (e *Entry) FieldNames() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Field returns the named field rendered as plain text. "key" resolves to
// the citation key; every stored field resolves to its value text.
func (e *Entry) Field(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "key" {
		return e.key, true
	}
	if v, ok := e.fields[name]; ok {
		return v.String(), true
	}
	return "", false
}

// Names parses a name-list field (author, editor, translator) into its
// individual names.
func (e *Entry) Names(field string) (names.List, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	v, ok := e.fields[field]
	if !ok {
		return nil, errors.NewNotFound("field", field)
	}
	return names.Parse(v.String())
}

// MissingFields returns the unsatisfied required-field groups for the
// entry's type, each rendered as the alternatives joined with "|".
// Nonstandard types have no requirements.
func (e *Entry) MissingFields() []string {
	var missing []string
	for _, group := range requiredFields[e.btype] {
		satisfied := false
		for _, name := range group {
			if _, ok := e.fields[name]; ok {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missing = append(missing, strings.Join(group, "|"))
		}
	}
	return missing
}

// Valid reports whether every required field group for the entry's type
// is satisfied.
func (e *Entry) Valid() bool {
	return len(e.MissingFields()) == 0
}

// Content returns the citation key followed by each field as
// `name = {value}` lines, in insertion order.
func (e *Entry) Content() string {
	var sb strings.Builder
	sb.WriteString(e.ID())
	for _, name := range e.order {
		sb.WriteString(",\n  ")
		sb.WriteString(name)
		sb.WriteString(" = ")
		sb.WriteString(e.fields[name].Render(Braces))
	}
	return sb.String()
}

// Text returns the full block: @type{content\n}.
func (e *Entry) Text() string {
	return fmt.Sprintf("@%s{%s\n}", e.btype, e.Content())
}

// Structured nests the key and the rendered fields under the entry's
// BibTeX type.
func (e *Entry) Structured() map[string]any {
	inner := make(map[string]string, len(e.fields)+1)
	inner["key"] = e.ID()
	for name, v := range e.fields {
		inner[name] = v.String()
	}
	return map[string]any{e.btype: inner}
}

// AddedTo attaches the entry and installs its citation key in the
// container's entry index.
func (e *Entry) AddedTo(b *Bibliography) error {
	if err := e.element.AddedTo(b); err != nil {
		return err
	}
	b.registerEntry(e)
	return nil
}

// RemovedFrom detaches the entry and removes its citation key from the
// container's entry index.
func (e *Entry) RemovedFrom(b *Bibliography) error {
	if err := e.element.RemovedFrom(b); err != nil {
		return err
	}
	b.unregisterEntry(e)
	return nil
}

// Expand resolves symbol references in every field value through r.
func (e *Entry) Expand(r Resolver) Element {
	for name, v := range e.fields {
		e.fields[name] = v.Expand(r)
	}
	return e
}

// Join merges adjacent literal tokens in every field value.
func (e *Entry) Join() Element {
	for name, v := range e.fields {
		e.fields[name] = v.Join()
	}
	return e
}
