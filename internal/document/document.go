// Package document parses the declarative job configuration committed to a
// repository (the ".jobsmith.yaml" file) into a typed, ordered form.
//
// The parser resolves each key into its condition clauses and option name up
// front, so later stages match and merge typed values instead of re-splitting
// strings. Unknown option names are kept: the serializer owns the supported
// option surface and rejects them there, which lets older servers pass over
// documents written for newer ones without failing the parse.
package document

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vk/jobsmith/internal/condition"
)

// Filename is the document's well-known path inside a repository.
const Filename = ".jobsmith.yaml"

// Entry is one qualified key of the document together with its parsed
// clauses and decoded value. Values are strings, []any or *Map; every scalar
// is kept as a string, whatever it would resolve to in YAML.
type Entry struct {
	// Key as written in the document, e.g. "platform-win64:timeout".
	Key string

	// Clauses scoping this entry. Empty for a bare key.
	Clauses []condition.Clause

	// Option the entry targets, e.g. "timeout".
	Option string

	Value any
}

// Conditioned reports whether the entry carries at least one clause.
func (e Entry) Conditioned() bool {
	return len(e.Clauses) > 0
}

// Document is the parsed configuration, with entries in declaration order.
// Declaration order is what makes list flattening and job enumeration
// deterministic, so it is preserved all the way through.
type Document struct {
	Entries []Entry
}

// ByOption returns every entry targeting the given option, in declaration
// order.
func (d *Document) ByOption(option string) []Entry {
	var entries []Entry
	for _, e := range d.Entries {
		if e.Option == option {
			entries = append(entries, e)
		}
	}
	return entries
}

// Bare returns the unconditioned entry for the option, if any.
func (d *Document) Bare(option string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Option == option && !e.Conditioned() {
			return e, true
		}
	}
	return Entry{}, false
}

// Parse decodes the document contents. A document that decodes to nothing at
// all is an error: pushing an empty file is almost certainly a mistake, and
// silently compiling it to zero jobs would delete every job in the group.
func Parse(contents []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(contents, &root); err != nil {
		return nil, &MalformedDocumentError{Reason: err.Error()}
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, &MalformedDocumentError{Reason: "could not parse anything from the document contents"}
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, &MalformedDocumentError{Reason: fmt.Sprintf("top level must be a mapping, got %s", nodeKind(mapping))}
	}

	doc := &Document{}
	seen := map[string]bool{}
	for i := 0; i < len(mapping.Content); i += 2 {
		keyNode, valueNode := mapping.Content[i], mapping.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, &MalformedDocumentError{Reason: fmt.Sprintf("keys must be strings, got %s", nodeKind(keyNode))}
		}
		key := keyNode.Value
		if seen[key] {
			return nil, &MalformedDocumentError{Key: key, Reason: "duplicate qualified key"}
		}
		seen[key] = true

		entry, err := parseEntry(key, valueNode)
		if err != nil {
			return nil, err
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc, nil
}

// parseEntry splits a qualified key into clauses and option name, decodes the
// value and checks its shape against the option catalog.
func parseEntry(key string, valueNode *yaml.Node) (Entry, error) {
	segments := strings.Split(key, ":")
	option := segments[len(segments)-1]

	var clauses []condition.Clause
	for _, token := range segments[:len(segments)-1] {
		clause, err := condition.ParseClause(token)
		if err != nil {
			return Entry{}, &MalformedDocumentError{Key: key, Reason: err.Error()}
		}
		clauses = append(clauses, clause)
	}

	value, err := decodeValue(valueNode)
	if err != nil {
		return Entry{}, &MalformedDocumentError{Key: key, Reason: err.Error()}
	}

	if spec, ok := catalog[option]; ok {
		if err := checkKind(spec.kind, value); err != nil {
			return Entry{}, &MalformedDocumentError{Key: key, Reason: err.Error()}
		}
	}

	return Entry{Key: key, Clauses: clauses, Option: option, Value: value}, nil
}

func checkKind(kind Kind, value any) error {
	switch kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected a string value, got %T", value)
		}
	case KindList:
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected a list value, got %T", value)
		}
	case KindMap:
		if _, ok := value.(*Map); !ok {
			return fmt.Errorf("expected a mapping value, got %T", value)
		}
	case KindMapOrString:
		switch value.(type) {
		case *Map, string:
		default:
			return fmt.Errorf("expected a mapping or string value, got %T", value)
		}
	}
	return nil
}

// decodeValue converts a YAML node into strings, []any and *Map.
// Scalars stay verbatim strings so values like "1.10" or "no" survive exactly
// as written; job definitions are passed to Jenkins as text anyway.
func decodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeValue(node.Alias)
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return "", nil
		}
		return node.Value, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			value, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i < len(node.Content); i += 2 {
			keyNode, valueNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("mapping keys must be strings, got %s", nodeKind(keyNode))
			}
			if _, dup := m.Get(keyNode.Value); dup {
				return nil, fmt.Errorf("duplicate mapping key %q", keyNode.Value)
			}
			value, err := decodeValue(valueNode)
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, value)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d", node.Kind)
	}
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.MappingNode:
		return "a mapping"
	case yaml.AliasNode:
		return "an alias"
	default:
		return fmt.Sprintf("node kind %d", node.Kind)
	}
}
