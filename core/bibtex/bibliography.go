package bibtex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/FocuswithJustin/CedarBib/core/errors"
	"github.com/FocuswithJustin/CedarBib/internal/fileutil"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

// Bibliography owns an ordered collection of elements. Attached string
// constants are additionally indexed by key in the symbol table, and
// entries by citation key; the element lifecycle hooks keep both indexes
// consistent with membership.
//
// A Bibliography is not safe for concurrent use; callers sharing one
// across goroutines must serialize access themselves.
type Bibliography struct {
	elements []Element
	strings  map[string]*StringConstant
	entries  map[string]*Entry

	// macros are predefined symbols (month macros) consulted by
	// ResolveString after the symbol table. Nil unless enabled.
	macros map[string]*Value
}

// New creates an empty bibliography.
func New() *Bibliography {
	return &Bibliography{
		strings: make(map[string]*StringConstant),
		entries: make(map[string]*Entry),
	}
}

// UseMonthMacros makes the bibliography resolve the standard month macros
// (jan through dec) like predefined string constants. The macros are not
// elements and never serialize.
func (b *Bibliography) UseMonthMacros() {
	if b.macros == nil {
		b.macros = make(map[string]*Value, len(monthNames))
	}
	for _, mn := range monthNames {
		b.macros[mn.Macro] = monthMacros[mn.Macro]
	}
}

// MonthMacros reports whether the month macros are enabled.
func (b *Bibliography) MonthMacros() bool {
	return b.macros != nil
}

// Add attaches an element to the bibliography. It fails with ErrAttached
// when the element already belongs to a container, leaving both
// containers unchanged.
func (b *Bibliography) Add(el Element) error {
	if el == nil {
		return errors.Wrap(errors.ErrInvalidInput, "add nil element")
	}
	if err := el.AddedTo(b); err != nil {
		return err
	}
	b.elements = append(b.elements, el)
	return nil
}

// Remove detaches an element. It fails with ErrNotAttached when the
// element does not belong to this bibliography.
func (b *Bibliography) Remove(el Element) error {
	if el == nil {
		return errors.ErrNotAttached
	}
	if err := el.RemovedFrom(b); err != nil {
		return err
	}
	for i, e := range b.elements {
		if e == el {
			b.elements = append(b.elements[:i], b.elements[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of attached elements.
func (b *Bibliography) Len() int {
	return len(b.elements)
}

// Elements returns the attached elements in insertion order.
func (b *Bibliography) Elements() []Element {
	out := make([]Element, len(b.elements))
	copy(out, b.elements)
	return out
}

// Entries returns the attached entries in insertion order.
func (b *Bibliography) Entries() []*Entry {
	var out []*Entry
	for _, el := range b.elements {
		if e, ok := el.(*Entry); ok {
			out = append(out, e)
		}
	}
	return out
}

// StringConstants returns the attached string constants in insertion
// order.
func (b *Bibliography) StringConstants() []*StringConstant {
	var out []*StringConstant
	for _, el := range b.elements {
		if s, ok := el.(*StringConstant); ok {
			out = append(out, s)
		}
	}
	return out
}

// Preambles returns the attached preambles in insertion order.
func (b *Bibliography) Preambles() []*Preamble {
	var out []*Preamble
	for _, el := range b.elements {
		if p, ok := el.(*Preamble); ok {
			out = append(out, p)
		}
	}
	return out
}

// Comments returns the attached comments in insertion order.
func (b *Bibliography) Comments() []*Comment {
	var out []*Comment
	for _, el := range b.elements {
		if c, ok := el.(*Comment); ok {
			out = append(out, c)
		}
	}
	return out
}

// Entry returns the entry indexed under the given citation key.
func (b *Bibliography) Entry(key string) (*Entry, bool) {
	e, ok := b.entries[key]
	return e, ok
}

// ResolveString looks up a string constant value by name, consulting the
// symbol table first and then any enabled predefined macros.
func (b *Bibliography) ResolveString(name string) (*Value, bool) {
	if s, ok := b.strings[name]; ok {
		return s.Value(), true
	}
	if v, ok := b.macros[name]; ok {
		return v, true
	}
	return nil, false
}

// Query returns every element matching the query, in insertion order.
// The query is parsed once; see Matches for the accepted forms.
func (b *Bibliography) Query(q any) ([]Element, error) {
	pq, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}
	var out []Element
	for _, el := range b.elements {
		ok, err := pq.Match(el)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

// QueryOne returns the first element matching the query, or a not-found
// error when nothing matches.
func (b *Bibliography) QueryOne(q any) (Element, error) {
	pq, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}
	for _, el := range b.elements {
		ok, err := pq.Match(el)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}
	}
	return nil, errors.NewNotFound("element", fmt.Sprint(q))
}

// Sort orders the elements deterministically by (Type(), Text()),
// keeping the relative order of elements that compare equal.
func (b *Bibliography) Sort() {
	sort.SliceStable(b.elements, func(i, j int) bool {
		return Compare(b.elements[i], b.elements[j]) < 0
	})
}

// ExpandStrings resolves string constant references in every expandable
// element against the bibliography's own symbol table.
func (b *Bibliography) ExpandStrings() {
	for _, el := range b.elements {
		if ex, ok := el.(Expandable); ok {
			ex.Expand(b)
		}
	}
}

// JoinStrings merges adjacent literal tokens in every expandable element,
// typically after ExpandStrings.
func (b *Bibliography) JoinStrings() {
	for _, el := range b.elements {
		if ex, ok := el.(Expandable); ok {
			ex.Join()
		}
	}
}

// String renders the bibliography as .bib source: each element's Text
// separated by blank lines, with a trailing newline. An empty
// bibliography renders as an empty string.
func (b *Bibliography) String() string {
	if len(b.elements) == 0 {
		return ""
	}
	texts := make([]string, len(b.elements))
	for i, el := range b.elements {
		texts[i] = el.Text()
	}
	return strings.Join(texts, "\n\n") + "\n"
}

// Structured returns each element's structured form, in insertion order.
func (b *Bibliography) Structured() []map[string]any {
	out := make([]map[string]any, len(b.elements))
	for i, el := range b.elements {
		out[i] = el.Structured()
	}
	return out
}

// Save writes the bibliography as .bib source to path, compressing
// transparently when the path carries a compression extension.
func (b *Bibliography) Save(path string) error {
	return fileutil.WriteFile(path, []byte(b.String()))
}

// registerString installs a string constant in the symbol table. A key
// collision keeps the newcomer and logs the replacement.
func (b *Bibliography) registerString(s *StringConstant) {
	if prev, ok := b.strings[s.key]; ok && prev != s {
		logging.Warn("replacing string constant", "key", s.key)
	}
	b.strings[s.key] = s
}

// unregisterString removes the symbol table entry, but only when it still
// points at the detaching constant.
func (b *Bibliography) unregisterString(s *StringConstant) {
	if b.strings[s.key] == s {
		delete(b.strings, s.key)
	}
}

// rekeyString moves a constant's symbol table entry from old to new. The
// caller has already validated new.
func (b *Bibliography) rekeyString(s *StringConstant, old, new string) {
	if b.strings[old] == s {
		delete(b.strings, old)
	}
	if prev, ok := b.strings[new]; ok && prev != s {
		logging.Warn("replacing string constant", "key", new)
	}
	b.strings[new] = s
}

// registerEntry installs an entry in the citation key index. Keyless
// entries are not indexed. A duplicate key keeps the newcomer and logs
// the collision.
func (b *Bibliography) registerEntry(e *Entry) {
	if e.key == "" {
		return
	}
	if prev, ok := b.entries[e.key]; ok && prev != e {
		logging.Warn("duplicate citation key", "key", e.key)
	}
	b.entries[e.key] = e
}

// unregisterEntry removes the index entry, but only when it still points
// at the detaching entry.
func (b *Bibliography) unregisterEntry(e *Entry) {
	if e.key != "" && b.entries[e.key] == e {
		delete(b.entries, e.key)
	}
}

// rekeyEntry moves an entry's index slot from old to new. The caller has
// already validated new.
func (b *Bibliography) rekeyEntry(e *Entry, old, new string) {
	if old != "" && b.entries[old] == e {
		delete(b.entries, old)
	}
	if prev, ok := b.entries[new]; ok && prev != e {
		logging.Warn("duplicate citation key", "key", new)
	}
	b.entries[new] = e
}
