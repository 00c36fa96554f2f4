package bibtex

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

func TestToJSON(t *testing.T) {
	t.Run("string constant", func(t *testing.T) {
		s := mustStringConstant(t, "foo", NewLiteral("bar"))
		got, err := ToJSON(s)
		if err != nil {
			t.Fatalf("ToJSON() error = %v", err)
		}
		want := "{\n  \"string\": {\n    \"foo\": \"\\\"bar\\\"\"\n  }\n}"
		if string(got) != want {
			t.Errorf("ToJSON() = %s, want %s", got, want)
		}
	})

	t.Run("entry keys sorted", func(t *testing.T) {
		e := mustEntry(t, "article", "smith2020")
		if err := e.Set("year", 2020); err != nil {
			t.Fatal(err)
		}
		if err := e.Set("author", "Smith, John"); err != nil {
			t.Fatal(err)
		}
		got, err := ToJSON(e)
		if err != nil {
			t.Fatalf("ToJSON() error = %v", err)
		}
		want := "{\n  \"article\": {\n    \"author\": \"Smith, John\",\n    \"key\": \"smith2020\",\n    \"year\": \"2020\"\n  }\n}"
		if string(got) != want {
			t.Errorf("ToJSON() = %s, want %s", got, want)
		}
	})
}

func TestToYAML(t *testing.T) {
	e := mustEntry(t, "article", "smith2020")
	if err := e.Set("zzz", "last"); err != nil {
		t.Fatal(err)
	}
	if err := e.Set("author", "Smith, John"); err != nil {
		t.Fatal(err)
	}

	got, err := ToYAML(e)
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}

	// Keys come out sorted regardless of insertion order.
	authorIdx := bytes.Index(got, []byte("author:"))
	keyIdx := bytes.Index(got, []byte("key:"))
	zzzIdx := bytes.Index(got, []byte("zzz:"))
	if authorIdx < 0 || keyIdx < 0 || zzzIdx < 0 {
		t.Fatalf("ToYAML() = %s, missing expected keys", got)
	}
	if !(authorIdx < keyIdx && keyIdx < zzzIdx) {
		t.Errorf("ToYAML() keys not sorted:\n%s", got)
	}

	// The output is stable across calls.
	again, err := ToYAML(e)
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}
	if !bytes.Equal(got, again) {
		t.Error("ToYAML() should be deterministic")
	}

	// And it decodes back to the structured form.
	var decoded map[string]map[string]string
	if err := yaml.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["article"]["author"] != "Smith, John" {
		t.Errorf("decoded author = %q", decoded["article"]["author"])
	}
	if decoded["article"]["key"] != "smith2020" {
		t.Errorf("decoded key = %q", decoded["article"]["key"])
	}
}

func TestToXML(t *testing.T) {
	t.Run("entry", func(t *testing.T) {
		e := mustEntry(t, "article", "smith2020")
		if err := e.Set("year", 2020); err != nil {
			t.Fatal(err)
		}
		if err := e.Set("author", "Smith, John"); err != nil {
			t.Fatal(err)
		}
		got, err := ToXML(e)
		if err != nil {
			t.Fatalf("ToXML() error = %v", err)
		}
		want := "<article>\n  <author>Smith, John</author>\n  <key>smith2020</key>\n  <year>2020</year>\n</article>\n"
		if string(got) != want {
			t.Errorf("ToXML() = %s, want %s", got, want)
		}
	})

	t.Run("escaping", func(t *testing.T) {
		c := NewComment("Smith & Jones <eds>")
		got, err := ToXML(c)
		if err != nil {
			t.Fatalf("ToXML() error = %v", err)
		}
		want := "<comment>Smith &amp; Jones &lt;eds&gt;</comment>\n"
		if string(got) != want {
			t.Errorf("ToXML() = %s, want %s", got, want)
		}
	})
}

func TestBibliographySerialization(t *testing.T) {
	b := New()
	if err := b.Add(NewComment("one")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add(NewPreamble(NewLiteral("two"))); err != nil {
		t.Fatal(err)
	}

	t.Run("json array in insertion order", func(t *testing.T) {
		got, err := b.ToJSON()
		if err != nil {
			t.Fatalf("ToJSON() error = %v", err)
		}
		want := "[\n  {\n    \"comment\": \"one\"\n  },\n  {\n    \"preamble\": \"\\\"two\\\"\"\n  }\n]"
		if string(got) != want {
			t.Errorf("ToJSON() = %s, want %s", got, want)
		}
	})

	t.Run("yaml sequence", func(t *testing.T) {
		got, err := b.ToYAML()
		if err != nil {
			t.Fatalf("ToYAML() error = %v", err)
		}
		var decoded []map[string]string
		if err := yaml.Unmarshal(got, &decoded); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if len(decoded) != 2 {
			t.Fatalf("decoded %d documents, want 2", len(decoded))
		}
		if decoded[0]["comment"] != "one" {
			t.Errorf("decoded[0] = %v", decoded[0])
		}
		if decoded[1]["preamble"] != `"two"` {
			t.Errorf("decoded[1] = %v", decoded[1])
		}
	})

	t.Run("xml document", func(t *testing.T) {
		got, err := b.ToXML()
		if err != nil {
			t.Fatalf("ToXML() error = %v", err)
		}
		s := string(got)
		if !strings.HasPrefix(s, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<bibliography>\n") {
			t.Errorf("ToXML() missing document header:\n%s", s)
		}
		if !strings.HasSuffix(s, "</bibliography>\n") {
			t.Errorf("ToXML() missing closing root:\n%s", s)
		}
		if !strings.Contains(s, "  <comment>one</comment>\n") {
			t.Errorf("ToXML() missing indented comment:\n%s", s)
		}
	})
}

// badElement produces a structured form no encoder supports.
type badElement struct{ element }

func (*badElement) Kind() Kind                 { return KindComment }
func (*badElement) Type() string               { return "bad" }
func (*badElement) HasType(c string) bool      { return c == "bad" }
func (*badElement) Content() string            { return "" }
func (*badElement) Text() string               { return "" }
func (*badElement) Structured() map[string]any { return map[string]any{"bad": 42} }
func (*badElement) Field(string) (string, bool) {
	return "", false
}

func TestSerializeUnsupportedShape(t *testing.T) {
	bad := &badElement{}
	if _, err := ToYAML(bad); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ToYAML(bad) error = %v, want ErrInvalidInput", err)
	}
	if _, err := ToXML(bad); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ToXML(bad) error = %v, want ErrInvalidInput", err)
	}
}
