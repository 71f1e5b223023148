// Package matrix expands the document's matrix definition into the concrete
// set of job variants.
//
// Each matrix variable declares an ordered list of value specs. A value spec
// is a comma-joined string whose first token is the primary value and whose
// remaining tokens are aliases: "win32,windows" is the value win32, also
// matchable in conditions as windows. The cartesian product of all variables,
// minus excluded combinations, is the set of jobs a document compiles to.
package matrix

import (
	"fmt"
	"strings"

	"github.com/vk/jobsmith/internal/condition"
	"github.com/vk/jobsmith/internal/document"
)

// DefinitionError reports a malformed matrix declaration.
type DefinitionError struct {
	Variable string
	Reason   string
}

func (e *DefinitionError) Error() string {
	if e.Variable == "" {
		return "invalid matrix: " + e.Reason
	}
	return fmt.Sprintf("invalid matrix: variable %q: %s", e.Variable, e.Reason)
}

// ValueSpec is one declared value of a matrix variable.
type ValueSpec struct {
	// Primary is the canonical value, used in the instance assignment, in
	// templating and in job names.
	Primary string

	// Aliases are alternative spellings accepted by condition clauses.
	Aliases []string
}

// All returns the primary value followed by the aliases.
func (v ValueSpec) All() []string {
	return append([]string{v.Primary}, v.Aliases...)
}

// Variable is a named matrix axis with its declared values.
type Variable struct {
	Name   string
	Values []ValueSpec
}

// Definition is the parsed matrix, variables in declaration order.
type Definition struct {
	Variables []Variable
}

// Names returns the variable names in declaration order.
func (d Definition) Names() []string {
	names := make([]string, len(d.Variables))
	for i, v := range d.Variables {
		names[i] = v.Name
	}
	return names
}

// Declares reports whether the definition has a variable with the given name.
func (d Definition) Declares(name string) bool {
	for _, v := range d.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

// ParseDefinition builds a Definition from the document's "matrix" mapping.
// A nil mapping is a valid empty matrix: the document compiles to one job.
func ParseDefinition(m *document.Map) (Definition, error) {
	var def Definition
	if m == nil {
		return def, nil
	}
	for _, name := range m.Keys() {
		raw, _ := m.Get(name)
		list, ok := raw.([]any)
		if !ok {
			return Definition{}, &DefinitionError{Variable: name, Reason: fmt.Sprintf("values must be a list, got %T", raw)}
		}

		variable := Variable{Name: name}
		primaries := map[string]bool{}
		for _, item := range list {
			text, ok := item.(string)
			if !ok {
				return Definition{}, &DefinitionError{Variable: name, Reason: fmt.Sprintf("values must be strings, got %T", item)}
			}
			spec, err := parseValueSpec(text)
			if err != nil {
				return Definition{}, &DefinitionError{Variable: name, Reason: err.Error()}
			}
			if primaries[spec.Primary] {
				return Definition{}, &DefinitionError{Variable: name, Reason: fmt.Sprintf("duplicate value %q", spec.Primary)}
			}
			primaries[spec.Primary] = true
			variable.Values = append(variable.Values, spec)
		}
		def.Variables = append(def.Variables, variable)
	}
	return def, nil
}

// parseValueSpec splits a comma-joined "primary,alias,..." declaration.
func parseValueSpec(text string) (ValueSpec, error) {
	tokens := strings.Split(text, ",")
	for _, token := range tokens {
		if token == "" {
			return ValueSpec{}, fmt.Errorf("value spec %q has an empty token", text)
		}
	}
	return ValueSpec{Primary: tokens[0], Aliases: tokens[1:]}, nil
}

// Instance is one point of the cartesian product: a concrete value for every
// matrix variable, in declared variable order.
type Instance struct {
	names  []string
	values map[string]ValueSpec
}

// Names returns the variable names in declared order.
func (in Instance) Names() []string {
	return in.names
}

// Value returns the chosen value spec of a variable.
func (in Instance) Value(name string) (ValueSpec, bool) {
	v, ok := in.values[name]
	return v, ok
}

// Assignment maps every variable to its primary value. Used as the template
// substitution base and surfaced in error messages.
func (in Instance) Assignment() map[string]string {
	assignment := make(map[string]string, len(in.names))
	for _, name := range in.names {
		assignment[name] = in.values[name].Primary
	}
	return assignment
}

// Facts returns the instance's values, aliases included, in the shape the
// condition matcher consumes.
func (in Instance) Facts(branch string) condition.Facts {
	values := make(map[string][]string, len(in.names))
	for _, name := range in.names {
		values[name] = in.values[name].All()
	}
	return condition.Facts{Values: values, Branch: branch}
}

// String renders the assignment for error messages, e.g. "mode=app, platform=win64".
func (in Instance) String() string {
	if len(in.names) == 0 {
		return "(empty matrix)"
	}
	parts := make([]string, len(in.names))
	for i, name := range in.names {
		parts[i] = name + "=" + in.values[name].Primary
	}
	return strings.Join(parts, ", ")
}

// Expand enumerates every instance of the definition in deterministic order:
// the last declared variable varies fastest, mirroring declaration order of
// both variables and values. The exclude callback drops single combinations;
// it receives each candidate before it is admitted.
//
// An empty definition yields exactly one empty instance. A variable declared
// with an empty value list makes the product empty, which is a valid
// zero-job outcome.
func Expand(def Definition, exclude func(Instance) (bool, error)) ([]Instance, error) {
	for _, variable := range def.Variables {
		if len(variable.Values) == 0 {
			return nil, nil
		}
	}

	instances := []Instance{}
	indices := make([]int, len(def.Variables))
	for {
		in := Instance{names: def.Names(), values: make(map[string]ValueSpec, len(def.Variables))}
		for i, variable := range def.Variables {
			in.values[variable.Name] = variable.Values[indices[i]]
		}

		if exclude != nil {
			drop, err := exclude(in)
			if err != nil {
				return nil, err
			}
			if !drop {
				instances = append(instances, in)
			}
		} else {
			instances = append(instances, in)
		}

		// Advance the odometer; most significant variable first, so the last
		// declared one varies fastest.
		i := len(indices) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(def.Variables[i].Values) {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return instances, nil
}
