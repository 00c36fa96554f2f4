package bibtex

import (
	"regexp"
	"testing"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

func TestParseQueryDispatch(t *testing.T) {
	tests := []struct {
		name  string
		query any
		want  queryKind
	}{
		{"nil matches all", nil, matchAll},
		{"empty string matches all", "", matchAll},
		{"blank string matches all", "   ", matchAll},
		{"element", NewComment("x"), byElement},
		{"compiled pattern", regexp.MustCompile("Smith"), byPattern},
		{"slash pattern", "/Smith/", byPattern},
		{"single clause", "@article", byTypeClauses},
		{"clause with conditions", "@article[year=2020]", byTypeClauses},
		{"several clauses", "@comment @preamble", byTypeClauses},
		{"at-sign with junk falls back to id", "email@example.com", byID},
		{"leading junk falls back to id", "key @article", byID},
		{"plain identifier", "smith2020", byID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery(%v) error = %v", tt.query, err)
			}
			if q.kind != tt.want {
				t.Errorf("ParseQuery(%v) kind = %d, want %d", tt.query, q.kind, tt.want)
			}
		})
	}

	t.Run("parsed query passes through", func(t *testing.T) {
		q := &Query{kind: matchAll}
		got, err := ParseQuery(q)
		if err != nil {
			t.Fatalf("ParseQuery(*Query) error = %v", err)
		}
		if got != q {
			t.Error("ParseQuery should return the same parsed query")
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := ParseQuery(42)
		var qerr *errors.QueryError
		if !errors.As(err, &qerr) {
			t.Fatalf("ParseQuery(42) error = %T, want *QueryError", err)
		}
		if !errors.Is(err, errors.ErrMalformedQuery) {
			t.Error("a query error with no cause should classify as malformed")
		}
	})

	t.Run("invalid slash pattern", func(t *testing.T) {
		_, err := ParseQuery("/[unclosed/")
		var qerr *errors.QueryError
		if !errors.As(err, &qerr) {
			t.Fatalf("error = %T, want *QueryError", err)
		}
		if qerr.Query != "/[unclosed/" {
			t.Errorf("Query = %q", qerr.Query)
		}
	})
}

// Every variant matches the nil query and the empty-string query.
func TestMatchesEverythingQueries(t *testing.T) {
	elements := []Element{
		mustStringConstant(t, "k", NewLiteral("v")),
		NewPreamble(NewLiteral("x")),
		NewComment("x"),
		NewMetaContent("x"),
		mustEntry(t, "article", "k"),
	}

	for _, el := range elements {
		for _, q := range []any{nil, ""} {
			ok, err := Matches(el, q)
			if err != nil {
				t.Errorf("Matches(%s, %v) error = %v", el.Type(), q, err)
			}
			if !ok {
				t.Errorf("Matches(%s, %v) = false, want true", el.Type(), q)
			}
		}
	}
}

func TestMatchesElement(t *testing.T) {
	a := NewComment("same")
	b := NewComment("same")
	c := NewComment("different")

	if ok, _ := Matches(a, b); !ok {
		t.Error("elements equal on (type, text) should match")
	}
	if ok, _ := Matches(a, c); ok {
		t.Error("elements with different text should not match")
	}
	if ok, _ := Matches(a, NewMetaContent("same")); ok {
		t.Error("different variants should not match")
	}
}

func TestMatchesPattern(t *testing.T) {
	e := mustEntry(t, "article", "smith2020")
	if err := e.Set("author", NewBraced("Smith, John")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		query any
		want  bool
	}{
		{"compiled regexp", regexp.MustCompile(`Smith`), true},
		{"slash form", "/Smith/", true},
		{"anchored on block syntax", `/^@article\{/`, true},
		{"no match", "/Jones/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Matches(e, tt.query)
			if err != nil {
				t.Fatalf("Matches() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.query, ok, tt.want)
			}
		})
	}
}

func TestMatchesTypeClauses(t *testing.T) {
	e := mustEntry(t, "article", "smith2020")
	if err := e.Set("year", NewBraced("2020")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		el    Element
		query string
		want  bool
	}{
		{"type only", e, "@article", true},
		{"variant alias", e, "@entry", true},
		{"wrong type", e, "@book", false},
		{"condition holds", e, "@article[year=2020]", true},
		{"condition fails", e, "@article[year=2019]", false},
		{"two conditions", e, "@article[year=2020, key=smith2020]", true},
		{"one of two fails", e, "@article[year=2020, key=other]", false},
		{"any clause suffices", e, "@book @article", true},
		{"case folded", e, "@Article[Year=2020]", true},
		{"uniform id property", e, "@article[id=smith2020]", true},
		{"uniform type property", e, "@article[type=article]", true},
		{"empty condition list", e, "@article[]", true},
		{"string alias", mustStringConstant(t, "k", NewLiteral("v")), "@string[key=k]", true},
		{"comment clause", NewComment("x"), "@comment", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Matches(tt.el, tt.query)
			if err != nil {
				t.Fatalf("Matches(%q) error = %v", tt.query, err)
			}
			if ok != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.query, ok, tt.want)
			}
		})
	}
}

func TestMatchesUnknownFieldPropagates(t *testing.T) {
	e := mustEntry(t, "article", "k")
	_, err := Matches(e, "@article[publisher=ACM]")
	var ferr *errors.UnknownFieldError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %T (%v), want *UnknownFieldError", err, err)
	}
	if !errors.Is(err, errors.ErrUnknownField) {
		t.Error("unknown-field errors should classify under ErrUnknownField")
	}

	// The failing type test shields other variants from the condition.
	if _, err := Matches(NewComment("x"), "@article[publisher=ACM]"); err != nil {
		t.Errorf("non-matching type should not evaluate conditions: %v", err)
	}
}

func TestMatchesByID(t *testing.T) {
	e := mustEntry(t, "article", "smith2020")
	if ok, _ := Matches(e, "smith2020"); !ok {
		t.Error("entry should match its citation key")
	}
	if ok, _ := Matches(e, "other2020"); ok {
		t.Error("entry should not match a different identifier")
	}

	c := NewComment("x")
	if err := c.SetID("note-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := Matches(c, "note-1"); !ok {
		t.Error("comment should match its assigned identifier")
	}
}

func TestMeets(t *testing.T) {
	e := mustEntry(t, "article", "smith2020")
	if err := e.Set("year", NewBraced("2020")); err != nil {
		t.Fatal(err)
	}
	if err := e.Set("author", "Smith, John"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		conditions []string
		want       bool
	}{
		{"no conditions", nil, true},
		{"single condition", []string{"year = 2020"}, true},
		{"both hold", []string{"year = 2020", "author = Smith, John"}, true},
		{"second fails", []string{"year = 2020", "author = Doe, Jane"}, false},
		{"first fails", []string{"year = 1999", "author = Smith, John"}, false},
		{"blank condition is vacuous", []string{"", "year = 2020"}, true},
		{"missing property is vacuous", []string{"= 2020"}, true},
		{"uniform properties", []string{"id = smith2020", "type = article"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Meets(e, tt.conditions...)
			if err != nil {
				t.Fatalf("Meets(%v) error = %v", tt.conditions, err)
			}
			if ok != tt.want {
				t.Errorf("Meets(%v) = %v, want %v", tt.conditions, ok, tt.want)
			}
		})
	}

	t.Run("unknown field", func(t *testing.T) {
		_, err := Meets(e, "publisher = ACM")
		if !errors.Is(err, errors.ErrUnknownField) {
			t.Errorf("Meets(unknown field) error = %v, want ErrUnknownField", err)
		}
	})
}

func TestBibliographyQuery(t *testing.T) {
	b := buildTestBibliography(t)

	tests := []struct {
		name  string
		query any
		want  int
	}{
		{"nil returns everything", nil, 5},
		{"empty string returns everything", "", 5},
		{"entries by variant", "@entry", 2},
		{"entries by type", "@article", 1},
		{"several clauses", "@comment @preamble", 2},
		{"by citation key", "smith2020", 1},
		{"no matches", "@phdthesis", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Query(tt.query)
			if err != nil {
				t.Fatalf("Query(%v) error = %v", tt.query, err)
			}
			if len(got) != tt.want {
				t.Errorf("Query(%v) returned %d elements, want %d", tt.query, len(got), tt.want)
			}
		})
	}

	t.Run("malformed query surfaces", func(t *testing.T) {
		_, err := b.Query("/[/")
		var qerr *errors.QueryError
		if !errors.As(err, &qerr) {
			t.Errorf("Query(invalid pattern) error = %T, want *QueryError", err)
		}
	})

	t.Run("condition errors surface", func(t *testing.T) {
		_, err := b.Query("@comment[author=x]")
		if !errors.Is(err, errors.ErrUnknownField) {
			t.Errorf("error = %v, want ErrUnknownField", err)
		}
	})
}
