package bibtex

import (
	"encoding/json"
	"encoding/xml"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// The encoders in this file derive every output format from the
// Structured form, so a variant that overrides Structured once gets all
// formats consistently. Output is deterministic: JSON map keys sort
// natively, YAML and XML are rendered from explicitly sorted key walks.

// ToJSON renders an element's structured form as indented JSON.
func ToJSON(e Element) ([]byte, error) {
	data, err := json.MarshalIndent(e.Structured(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode element as JSON")
	}
	return data, nil
}

// ToYAML renders an element's structured form as YAML with sorted keys.
func ToYAML(e Element) ([]byte, error) {
	node, err := yamlNode(e.Structured())
	if err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return nil, errors.Wrap(err, "encode element as YAML")
	}
	return data, nil
}

// ToXML renders an element's structured form as an XML fragment with
// sorted keys and no document header.
func ToXML(e Element) ([]byte, error) {
	var sb strings.Builder
	if err := writeXMLMap(&sb, e.Structured(), ""); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

// ToJSON renders the whole bibliography as an indented JSON array of
// structured elements.
func (b *Bibliography) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(b.Structured(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode bibliography as JSON")
	}
	return data, nil
}

// ToYAML renders the whole bibliography as a YAML sequence of structured
// elements with sorted keys.
func (b *Bibliography) ToYAML() ([]byte, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, m := range b.Structured() {
		node, err := yamlNode(m)
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, node)
	}
	data, err := yaml.Marshal(seq)
	if err != nil {
		return nil, errors.Wrap(err, "encode bibliography as YAML")
	}
	return data, nil
}

// ToXML renders the whole bibliography as an XML document rooted at
// <bibliography>.
func (b *Bibliography) ToXML() ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString("<bibliography>\n")
	for _, m := range b.Structured() {
		if err := writeXMLMap(&sb, m, "  "); err != nil {
			return nil, err
		}
	}
	sb.WriteString("</bibliography>\n")
	return []byte(sb.String()), nil
}

// yamlNode builds a yaml.Node tree with map keys in sorted order.
// yaml.Marshal on a Go map would randomize them.
func yamlNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case map[string]any:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range sortedKeys(val) {
			child, err := yamlNode(val[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, yamlScalar(k), child)
		}
		return node, nil
	case map[string]string:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node.Content = append(node.Content, yamlScalar(k), yamlScalar(val[k]))
		}
		return node, nil
	case string:
		return yamlScalar(val), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported structured value type %T", v)
	}
}

func yamlScalar(s string) *yaml.Node {
	n := &yaml.Node{}
	n.SetString(s)
	return n
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeXMLMap renders one structured map as XML elements, keys sorted.
// Map keys become tag names; they are safe because they pass symbolic
// name validation upstream.
func writeXMLMap(sb *strings.Builder, m map[string]any, indent string) error {
	for _, k := range sortedKeys(m) {
		if err := writeXMLValue(sb, k, m[k], indent); err != nil {
			return err
		}
	}
	return nil
}

func writeXMLValue(sb *strings.Builder, name string, v any, indent string) error {
	switch val := v.(type) {
	case string:
		sb.WriteString(indent)
		sb.WriteString("<")
		sb.WriteString(name)
		sb.WriteString(">")
		if err := xml.EscapeText(sb, []byte(val)); err != nil {
			return errors.Wrap(err, "escape XML text")
		}
		sb.WriteString("</")
		sb.WriteString(name)
		sb.WriteString(">\n")
		return nil
	case map[string]string:
		sb.WriteString(indent)
		sb.WriteString("<")
		sb.WriteString(name)
		sb.WriteString(">\n")
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := writeXMLValue(sb, k, val[k], indent+"  "); err != nil {
				return err
			}
		}
		sb.WriteString(indent)
		sb.WriteString("</")
		sb.WriteString(name)
		sb.WriteString(">\n")
		return nil
	case map[string]any:
		sb.WriteString(indent)
		sb.WriteString("<")
		sb.WriteString(name)
		sb.WriteString(">\n")
		if err := writeXMLMap(sb, val, indent+"  "); err != nil {
			return err
		}
		sb.WriteString(indent)
		sb.WriteString("</")
		sb.WriteString(name)
		sb.WriteString(">\n")
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unsupported structured value type %T", v)
	}
}
