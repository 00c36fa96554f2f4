// Package bibxml converts between bibliographies and BibTeXML documents.
//
// BibTeXML (http://bibtexml.sf.net/) represents BibTeX entries as nested
// XML elements: a bibtex:file root holding one bibtex:entry per citation,
// each wrapping a single element named after the entry type whose children
// are the fields. Only entries have a BibTeXML representation; string
// constants, preambles, and comments are outside the dialect, so Export
// offers symbol expansion instead of emitting them.
package bibxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/CedarBib/core/bibtex"
	"github.com/FocuswithJustin/CedarBib/core/errors"
	"github.com/FocuswithJustin/CedarBib/internal/fileutil"
	"github.com/FocuswithJustin/CedarBib/internal/logging"
)

// Namespace is the BibTeXML namespace URI.
const Namespace = "http://bibtexml.sf.net/"

// entrySelector matches entry elements whatever prefix the document binds
// the namespace to.
var entrySelector = xpath.MustCompile("//*[local-name()='entry']")

// ExportOptions controls BibTeXML output.
type ExportOptions struct {
	// Expand resolves symbol references against the bibliography before
	// rendering, so exported field values are self-contained.
	Expand bool
}

// Export renders the bibliography's entries as a BibTeXML document.
// Entries appear in insertion order with their fields in field order.
func Export(bib *bibtex.Bibliography, opts ExportOptions) ([]byte, error) {
	if bib == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "bibliography is nil")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<bibtex:file xmlns:bibtex=\"" + Namespace + "\">\n")
	skipped := 0
	for _, el := range bib.Elements() {
		entry, ok := el.(*bibtex.Entry)
		if !ok {
			skipped++
			continue
		}
		if err := writeEntry(&buf, entry, bib, opts); err != nil {
			return nil, err
		}
	}
	buf.WriteString("</bibtex:file>\n")
	if skipped > 0 {
		logging.Debug("bibtexml export skipped non-entry elements", "count", skipped)
	}
	return buf.Bytes(), nil
}

func writeEntry(buf *bytes.Buffer, entry *bibtex.Entry, bib *bibtex.Bibliography, opts ExportOptions) error {
	buf.WriteString("  <bibtex:entry id=\"")
	if err := xml.EscapeText(buf, []byte(entry.Key())); err != nil {
		return fmt.Errorf("escape entry key %q: %w", entry.Key(), err)
	}
	buf.WriteString("\">\n")
	buf.WriteString("    <bibtex:" + entry.Type() + ">\n")
	for _, name := range entry.FieldNames() {
		value, _ := entry.GetField(name)
		if opts.Expand {
			value = value.Expand(bib)
		}
		buf.WriteString("      <bibtex:" + name + ">")
		if err := xml.EscapeText(buf, []byte(value.String())); err != nil {
			return fmt.Errorf("escape field %s of %q: %w", name, entry.Key(), err)
		}
		buf.WriteString("</bibtex:" + name + ">\n")
	}
	buf.WriteString("    </bibtex:" + entry.Type() + ">\n")
	buf.WriteString("  </bibtex:entry>\n")
	return nil
}

// Import parses a BibTeXML document into a new bibliography.
// Both prefixed (bibtex:entry) and unprefixed (entry) element names are
// accepted. Field values become braced tokens, matching how the same
// content would parse from a .bib file.
func Import(data []byte) (*bibtex.Bibliography, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse bibtexml: %w", err)
	}

	bib := bibtex.New()
	for _, node := range xmlquery.QuerySelectorAll(root, entrySelector) {
		entry, err := importEntry(node)
		if err != nil {
			return nil, err
		}
		if err := bib.Add(entry); err != nil {
			return nil, fmt.Errorf("add entry %q: %w", entry.Key(), err)
		}
	}
	logging.Debug("bibtexml import complete", "entries", bib.Len())
	return bib, nil
}

func importEntry(node *xmlquery.Node) (*bibtex.Entry, error) {
	key := node.SelectAttr("id")
	if key == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "bibtexml entry has no id attribute")
	}

	typeNode := firstElementChild(node)
	if typeNode == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "bibtexml entry %q has no type element", key)
	}

	entry, err := bibtex.NewEntry(typeNode.Data, key)
	if err != nil {
		return nil, fmt.Errorf("bibtexml entry %q: %w", key, err)
	}
	for field := firstElementChild(typeNode); field != nil; field = nextElementSibling(field) {
		if err := entry.Set(field.Data, strings.TrimSpace(field.InnerText())); err != nil {
			return nil, fmt.Errorf("bibtexml entry %q field %s: %w", key, field.Data, err)
		}
	}
	return entry, nil
}

func firstElementChild(n *xmlquery.Node) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

func nextElementSibling(n *xmlquery.Node) *xmlquery.Node {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == xmlquery.ElementNode {
			return sib
		}
	}
	return nil
}

// ExportFile writes the bibliography's entries to path as BibTeXML.
// Compression is chosen by extension, so refs.xml.gz writes gzip.
func ExportFile(path string, bib *bibtex.Bibliography, opts ExportOptions) error {
	data, err := Export(bib, opts)
	if err != nil {
		return err
	}
	return fileutil.WriteFile(path, data)
}

// ImportFile reads a BibTeXML document from path. Compressed files are
// detected by content, so the extension does not matter for reading.
func ImportFile(path string) (*bibtex.Bibliography, error) {
	data, err := fileutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Import(data)
}
