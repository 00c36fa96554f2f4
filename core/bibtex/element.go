// Package bibtex models a BibTeX bibliographic database as an object graph:
// a polymorphic element hierarchy (string constants, preambles, comments,
// meta content, entries), a bibliography container with a string-constant
// symbol table, a query DSL for selecting elements, and a parser that turns
// .bib source into element instances.
//
// Elements are created detached and join a container explicitly through
// Bibliography.Add, which drives the AddedTo/RemovedFrom lifecycle hooks.
// All serialization formats derive from a single Structured form per
// variant, so overriding Content and Structured once keeps every output
// format consistent.
package bibtex

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// Kind identifies a concrete element variant.
type Kind int

// Element variant kinds.
const (
	KindStringConstant Kind = iota
	KindPreamble
	KindComment
	KindMetaContent
	KindEntry
)

// Variant type names, derived from the variant names by inserting an
// underscore at each lower-to-upper boundary and lowercasing.
const (
	TypeStringConstant = "string_constant"
	TypePreamble       = "preamble"
	TypeComment        = "comment"
	TypeMetaContent    = "meta_content"
	TypeEntry          = "entry"
)

// String returns the derived type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindStringConstant:
		return TypeStringConstant
	case KindPreamble:
		return TypePreamble
	case KindComment:
		return TypeComment
	case KindMetaContent:
		return TypeMetaContent
	case KindEntry:
		return TypeEntry
	default:
		return "unknown"
	}
}

// kindAliases maps every name recognized by HasType to its variant. The
// alias table stands in for runtime class lookup: "string" and
// "string_constant" both name StringConstant, "entry" names any Entry
// regardless of its BibTeX type, and so on.
var kindAliases = map[string]Kind{
	"string":          KindStringConstant,
	"string_constant": KindStringConstant,
	"preamble":        KindPreamble,
	"comment":         KindComment,
	"meta_content":    KindMetaContent,
	"meta":            KindMetaContent,
	"entry":           KindEntry,
}

// Element is the capability contract shared by every record variant.
type Element interface {
	// ID returns the element's stable identifier. If never set it is a
	// unique token generated lazily on first read and cached. Entries
	// use their citation key instead.
	ID() string
	// SetID assigns the identifier. Entries route this through citation
	// key validation; other variants accept any value.
	SetID(id string) error

	// Kind reports the concrete variant.
	Kind() Kind
	// Type returns the variant's type name; entries return their BibTeX
	// type (article, book, ...) instead of the derived name.
	Type() string
	// HasType reports whether candidate equals Type() or names this
	// element's variant.
	HasType(candidate string) bool

	// Content returns the variant-specific textual payload. It is pure:
	// callable at any lifecycle stage, with no side effects.
	Content() string
	// Text returns the element in .bib source form, wrapping Content in
	// the variant's block syntax where one exists.
	Text() string
	// Structured returns the serializable shape of the element. The
	// JSON, YAML, and XML encoders all derive from it.
	Structured() map[string]any
	// Field returns the named variant field rendered as text. The
	// boolean reports whether the variant defines that field.
	Field(name string) (string, bool)

	// Bibliography returns the container currently holding the element,
	// or nil while detached.
	Bibliography() *Bibliography
	// AddedTo attaches the element to a container. Fails with
	// ErrAttached if it already belongs to one.
	AddedTo(b *Bibliography) error
	// RemovedFrom detaches the element from the container it belongs
	// to. Fails with ErrNotAttached for any other container.
	RemovedFrom(b *Bibliography) error
}

// Expandable is implemented by variants whose content can contain string
// constant references: StringConstant, Preamble, and Entry. Comment and
// MetaContent are opaque and do not implement it.
type Expandable interface {
	// Expand resolves symbol tokens through r and returns the element
	// holding the expanded form.
	Expand(r Resolver) Element
	// Join merges adjacent literal tokens and returns the element
	// holding the joined form.
	Join() Element
}

// element carries the state every variant shares: the lazily generated
// identifier and the non-owning back-reference to the owning container.
// It is embedded by every variant.
type element struct {
	id  string
	bib *Bibliography
}

func (e *element) ID() string {
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e.id
}

func (e *element) SetID(id string) error {
	e.id = id
	return nil
}

func (e *element) Bibliography() *Bibliography {
	return e.bib
}

func (e *element) AddedTo(b *Bibliography) error {
	if b == nil {
		return errors.Wrap(errors.ErrInvalidInput, "attach to nil bibliography")
	}
	if e.bib != nil {
		return errors.ErrAttached
	}
	e.bib = b
	return nil
}

func (e *element) RemovedFrom(b *Bibliography) error {
	if b == nil || e.bib != b {
		return errors.ErrNotAttached
	}
	e.bib = nil
	return nil
}

// matchType implements the HasType contract for a variant: candidate
// matches if it equals the element's type name or if it is a registered
// alias for the element's kind. Matching is case-insensitive.
func matchType(kind Kind, typeName, candidate string) bool {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == typeName {
		return true
	}
	alias, ok := kindAliases[candidate]
	return ok && alias == kind
}

// Compare orders two elements lexicographically on the pair
// (Type(), Text()). It is the ordering used for deterministic output.
func Compare(a, b Element) int {
	if c := strings.Compare(a.Type(), b.Type()); c != 0 {
		return c
	}
	return strings.Compare(a.Text(), b.Text())
}

// Equal reports whether two elements compare equal. Equality under this
// ordering does not imply identity.
func Equal(a, b Element) bool {
	return Compare(a, b) == 0
}

// symbolReserved holds the characters BibTeX reserves in symbolic names.
const symbolReserved = "\"#%'(),={} \t\r\n"

// validateSymbolName checks that name is usable as a string constant key:
// non-empty, starting with a letter, free of whitespace and reserved
// characters.
func validateSymbolName(name string) error {
	if name == "" {
		return errors.NewCoercion(name, "empty value")
	}
	for i, r := range name {
		if i == 0 && !unicode.IsLetter(r) {
			return errors.NewCoercion(name, "must start with a letter")
		}
		if unicode.IsSpace(r) {
			return errors.NewCoercion(name, "contains whitespace")
		}
		if strings.ContainsRune(symbolReserved, r) {
			return errors.NewCoercion(name, "contains a reserved character")
		}
	}
	return nil
}

// validateCitationKey checks that key is usable as an entry citation key.
// Citation keys are laxer than symbol names: they may start with a digit,
// but still exclude whitespace and the reserved delimiters.
func validateCitationKey(key string) error {
	if key == "" {
		return errors.NewCoercion(key, "empty value")
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return errors.NewCoercion(key, "contains whitespace")
		}
		if strings.ContainsRune("\"#%'(),={}", r) {
			return errors.NewCoercion(key, "contains a reserved character")
		}
	}
	return nil
}
