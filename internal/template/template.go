// Package template substitutes matrix and repository variables into document
// values.
//
// Placeholders use single braces: "echo {name} {branch}". Literal braces are
// written doubled, "{{" and "}}". Substitution walks lists and mappings
// recursively, including mapping keys, so any string leaf of an option value
// can reference a variable.
package template

import (
	"fmt"
	"strings"

	"github.com/vk/jobsmith/internal/document"
)

// UnknownVariableError reports a placeholder with no bound value.
type UnknownVariableError struct {
	// Name of the placeholder, e.g. "platform".
	Name string

	// Template is the string the placeholder appeared in.
	Template string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown template variable %q in %q", e.Name, e.Template)
}

// ExpandString replaces every {var} placeholder in s.
func ExpandString(s string, vars map[string]string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		switch s[i] {
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed placeholder in %q", s)
			}
			name := s[i+1 : i+1+end]
			value, ok := vars[name]
			if !ok {
				return "", &UnknownVariableError{Name: name, Template: s}
			}
			b.WriteString(value)
			i += end + 2
		case '}':
			if i+1 < len(s) && s[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fmt.Errorf("single %q in %q, escape it as %q", "}", s, "}}")
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), nil
}

// Expand applies ExpandString to every string leaf of a document value.
// Lists and mappings are rebuilt, never mutated; non-string leaves pass
// through unchanged.
func Expand(value any, vars map[string]string) (any, error) {
	switch v := value.(type) {
	case string:
		return ExpandString(v, vars)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := Expand(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case *document.Map:
		out := document.NewMap()
		for _, key := range v.Keys() {
			expandedKey, err := ExpandString(key, vars)
			if err != nil {
				return nil, err
			}
			item, _ := v.Get(key)
			expanded, err := Expand(item, vars)
			if err != nil {
				return nil, err
			}
			out.Set(expandedKey, expanded)
		}
		return out, nil
	default:
		return value, nil
	}
}
