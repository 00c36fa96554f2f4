package bibxml

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/core/errors"
)

func buildExportBibliography(t *testing.T) *bibtex.Bibliography {
	t.Helper()
	src := `@string{ acm = "Association for Computing Machinery" }

@article{smith2020,
  author = {Smith, John},
  year = {2020},
  publisher = acm
}`
	bib, err := bibtex.ParseString(src, bibtex.ParseOptions{})
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return bib
}

func TestExport(t *testing.T) {
	bib := buildExportBibliography(t)

	data, err := Export(bib, ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := `<?xml version="1.0" encoding="UTF-8"?>
<bibtex:file xmlns:bibtex="http://bibtexml.sf.net/">
  <bibtex:entry id="smith2020">
    <bibtex:article>
      <bibtex:author>Smith, John</bibtex:author>
      <bibtex:year>2020</bibtex:year>
      <bibtex:publisher>acm</bibtex:publisher>
    </bibtex:article>
  </bibtex:entry>
</bibtex:file>
`
	if got := string(data); got != want {
		t.Errorf("Export mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportExpand(t *testing.T) {
	bib := buildExportBibliography(t)

	data, err := Export(bib, ExportOptions{Expand: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(data), "<bibtex:publisher>Association for Computing Machinery</bibtex:publisher>") {
		t.Errorf("expanded export missing resolved publisher:\n%s", data)
	}

	// Expansion must not touch the bibliography itself.
	entry, _ := bib.Entry("smith2020")
	if got, want := entry.Content(), "smith2020,\n  author = {Smith, John},\n  year = {2020},\n  publisher = acm"; got != want {
		t.Errorf("entry mutated by export:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportEscaping(t *testing.T) {
	bib := bibtex.New()
	entry, err := bibtex.NewEntry("misc", "odd")
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if err := entry.Set("title", "Tables & <Chairs>"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := bib.Add(entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	data, err := Export(bib, ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(data), "<bibtex:title>Tables &amp; &lt;Chairs&gt;</bibtex:title>") {
		t.Errorf("escaping missing:\n%s", data)
	}
}

func TestExportNil(t *testing.T) {
	if _, err := Export(nil, ExportOptions{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Export(nil) = %v, want ErrInvalidInput", err)
	}
}

func TestImport(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<bibtex:file xmlns:bibtex="http://bibtexml.sf.net/">
  <bibtex:entry id="doe2019">
    <bibtex:book>
      <bibtex:author>Doe, Jane</bibtex:author>
      <bibtex:title>A Survey</bibtex:title>
    </bibtex:book>
  </bibtex:entry>
  <bibtex:entry id="smith2020">
    <bibtex:article>
      <bibtex:year>2020</bibtex:year>
    </bibtex:article>
  </bibtex:entry>
</bibtex:file>
`
	bib, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got, want := bib.Len(), 2; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	book, ok := bib.Entry("doe2019")
	if !ok {
		t.Fatal("doe2019 not imported")
	}
	if got, want := book.Type(), "book"; got != want {
		t.Errorf("Type() = %q, want %q", got, want)
	}
	if got, _ := book.Field("author"); got != "Doe, Jane" {
		t.Errorf("author = %q, want %q", got, "Doe, Jane")
	}
	if got, want := book.Content(), "doe2019,\n  author = {Doe, Jane},\n  title = {A Survey}"; got != want {
		t.Errorf("Content mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}

	article, ok := bib.Entry("smith2020")
	if !ok {
		t.Fatal("smith2020 not imported")
	}
	if got, _ := article.Field("year"); got != "2020" {
		t.Errorf("year = %q, want %q", got, "2020")
	}
}

func TestImportUnprefixed(t *testing.T) {
	doc := `<file>
  <entry id="plain1">
    <misc>
      <note>no namespace here</note>
    </misc>
  </entry>
</file>`
	bib, err := Import([]byte(doc))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	entry, ok := bib.Entry("plain1")
	if !ok {
		t.Fatal("plain1 not imported")
	}
	if got, _ := entry.Field("note"); got != "no namespace here" {
		t.Errorf("note = %q", got)
	}
}

func TestImportEmpty(t *testing.T) {
	bib, err := Import([]byte(`<bibtex:file xmlns:bibtex="http://bibtexml.sf.net/"></bibtex:file>`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if bib.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bib.Len())
	}
}

func TestImportErrors(t *testing.T) {
	t.Run("malformed xml", func(t *testing.T) {
		if _, err := Import([]byte("<file><entry id=")); err == nil {
			t.Error("malformed document imported without error")
		}
	})

	t.Run("entry without id", func(t *testing.T) {
		doc := `<file><entry><misc><note>x</note></misc></entry></file>`
		_, err := Import([]byte(doc))
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Import = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("entry without type element", func(t *testing.T) {
		doc := `<file><entry id="bare"></entry></file>`
		_, err := Import([]byte(doc))
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Import = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("duplicate ids keep last", func(t *testing.T) {
		doc := `<file>
  <entry id="dup"><misc><note>first</note></misc></entry>
  <entry id="dup"><misc><note>second</note></misc></entry>
</file>`
		bib, err := Import([]byte(doc))
		if err != nil {
			t.Fatalf("Import: %v", err)
		}
		entry, ok := bib.Entry("dup")
		if !ok {
			t.Fatal("dup not imported")
		}
		if got, _ := entry.Field("note"); got != "second" {
			t.Errorf("note = %q, want %q", got, "second")
		}
	})
}

func TestRoundTrip(t *testing.T) {
	bib := buildExportBibliography(t)
	data, err := Export(bib, ExportOptions{Expand: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	back, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	entry, ok := back.Entry("smith2020")
	if !ok {
		t.Fatal("smith2020 lost in round trip")
	}
	if got, want := entry.Type(), "article"; got != want {
		t.Errorf("Type() = %q, want %q", got, want)
	}
	for field, want := range map[string]string{
		"author":    "Smith, John",
		"year":      "2020",
		"publisher": "Association for Computing Machinery",
	} {
		if got, _ := entry.Field(field); got != want {
			t.Errorf("%s = %q, want %q", field, got, want)
		}
	}
}

func TestExportImportFile(t *testing.T) {
	bib := buildExportBibliography(t)
	dir := t.TempDir()

	for _, name := range []string{"refs.xml", "refs.xml.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := ExportFile(path, bib, ExportOptions{}); err != nil {
				t.Fatalf("ExportFile: %v", err)
			}
			back, err := ImportFile(path)
			if err != nil {
				t.Fatalf("ImportFile: %v", err)
			}
			if _, ok := back.Entry("smith2020"); !ok {
				t.Error("smith2020 missing after file round trip")
			}
		})
	}
}
