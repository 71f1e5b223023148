// Package compiler turns a parsed document into one resolved job
// specification per matrix instance.
//
// The pipeline is pure: document in, specs out, in a deterministic order.
// For every instance the compiler selects the entries whose conditions match,
// substitutes the instance's variables into their values and merges them by
// option. List-semantics options flatten across sources; scalar-semantics
// options admit exactly one source and fail on a second. The serializer
// (internal/jenkins) then renders each spec without further matching.
package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vk/jobsmith/internal/condition"
	"github.com/vk/jobsmith/internal/document"
	"github.com/vk/jobsmith/internal/matrix"
	"github.com/vk/jobsmith/internal/repository"
	"github.com/vk/jobsmith/internal/template"
)

// ResolvedSpec is the fully-merged, fully-templated option set of a single
// job. Immutable once returned; the serializer only reads it.
type ResolvedSpec struct {
	// Instance this spec was resolved for.
	Instance matrix.Instance

	// Options maps option names to their merged values. Reserved options
	// (matrix, exclude, branch_patterns, ignore_unmatchable) never appear.
	Options map[string]any
}

// Compile resolves the document for a repository/branch pair: parses the
// matrix, drops excluded instances and assembles one ResolvedSpec per
// surviving instance, in the matrix's deterministic enumeration order.
//
// Any error aborts the whole compilation; no partial spec list is returned.
func Compile(doc *document.Document, repo repository.Repository) ([]ResolvedSpec, error) {
	def, err := matrixDefinition(doc)
	if err != nil {
		return nil, err
	}

	if err := checkUnmatchable(doc, def); err != nil {
		return nil, err
	}

	instances, err := matrix.Expand(def, func(in matrix.Instance) (bool, error) {
		return excluded(doc, in, repo)
	})
	if err != nil {
		return nil, err
	}

	specs := make([]ResolvedSpec, 0, len(instances))
	for _, in := range instances {
		spec, err := assemble(doc, in, repo)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// matrixDefinition parses the reserved "matrix" option. The matrix defines
// what conditions are resolved against, so it cannot itself be conditioned.
func matrixDefinition(doc *document.Document) (matrix.Definition, error) {
	for _, e := range doc.ByOption("matrix") {
		if e.Conditioned() {
			return matrix.Definition{}, &document.MalformedDocumentError{Key: e.Key, Reason: "the matrix option cannot be conditioned"}
		}
	}
	entry, ok := doc.Bare("matrix")
	if !ok {
		return matrix.Definition{}, nil
	}
	m, _ := entry.Value.(*document.Map)
	return matrix.ParseDefinition(m)
}

// checkUnmatchable rejects conditioned keys that no matrix instance can ever
// satisfy (branch clauses are treated as wildcards here). The document can
// opt out with ignore_unmatchable, mirroring documents shared between
// branches with different matrices.
func checkUnmatchable(doc *document.Document, def matrix.Definition) error {
	if entry, ok := doc.Bare("ignore_unmatchable"); ok {
		text, _ := entry.Value.(string)
		ignore, err := parseBool(text)
		if err != nil {
			return &document.MalformedDocumentError{Key: entry.Key, Reason: err.Error()}
		}
		if ignore {
			return nil
		}
	}

	instances, err := matrix.Expand(def, nil)
	if err != nil {
		return err
	}
	for _, e := range doc.Entries {
		if !e.Conditioned() {
			continue
		}
		matched := false
		for _, in := range instances {
			facts := in.Facts("")
			facts.AnyBranch = true
			if condition.MatchAll(e.Clauses, facts) {
				matched = true
				break
			}
		}
		if !matched {
			return &UnmatchableConditionError{Key: e.Key}
		}
	}
	return nil
}

// excluded evaluates the reserved "exclude" keys against one candidate
// instance. Any matching entry whose templated value is truthy drops the
// instance from the product.
func excluded(doc *document.Document, in matrix.Instance, repo repository.Repository) (bool, error) {
	entries := doc.ByOption("exclude")
	if len(entries) == 0 {
		return false, nil
	}
	facts := in.Facts(repo.Branch)
	vars := substitutions(in, repo)
	for _, e := range entries {
		if !condition.MatchAll(e.Clauses, facts) {
			continue
		}
		text, _ := e.Value.(string)
		templated, err := template.ExpandString(text, vars)
		if err != nil {
			return false, err
		}
		drop, err := parseBool(templated)
		if err != nil {
			return false, &document.MalformedDocumentError{Key: e.Key, Reason: err.Error()}
		}
		if drop {
			return true, nil
		}
	}
	return false, nil
}

// assemble gathers, templates and merges every matching entry for one
// instance.
func assemble(doc *document.Document, in matrix.Instance, repo repository.Repository) (ResolvedSpec, error) {
	facts := in.Facts(repo.Branch)
	vars := substitutions(in, repo)

	type source struct {
		key   string
		value any
	}
	sources := map[string][]source{}
	var order []string

	// Bare entries first, conditioned entries second, each group in
	// declaration order. This fixes the flattening order for list options:
	// the unconditioned base list always precedes conditional additions.
	admit := func(conditioned bool) error {
		for _, e := range doc.Entries {
			if document.Reserved(e.Option) || e.Conditioned() != conditioned {
				continue
			}
			if conditioned && !condition.MatchAll(e.Clauses, facts) {
				continue
			}
			value, err := template.Expand(e.Value, vars)
			if err != nil {
				return err
			}
			if _, ok := sources[e.Option]; !ok {
				order = append(order, e.Option)
			}
			sources[e.Option] = append(sources[e.Option], source{key: e.Key, value: value})
		}
		return nil
	}
	if err := admit(false); err != nil {
		return ResolvedSpec{}, err
	}
	if err := admit(true); err != nil {
		return ResolvedSpec{}, err
	}

	spec := ResolvedSpec{Instance: in, Options: make(map[string]any, len(order))}
	for _, option := range order {
		resolved := sources[option]
		if document.ListSemantics(option) {
			var flattened []any
			for _, s := range resolved {
				list, ok := s.value.([]any)
				if !ok {
					return ResolvedSpec{}, &document.MalformedDocumentError{Key: s.key, Reason: fmt.Sprintf("expected a list value, got %T", s.value)}
				}
				flattened = append(flattened, list...)
			}
			spec.Options[option] = flattened
			continue
		}
		if len(resolved) > 1 {
			keys := make([]string, len(resolved))
			for i, s := range resolved {
				keys[i] = s.key
			}
			return ResolvedSpec{}, &OptionConflictError{Option: option, Instance: in.String(), Keys: keys}
		}
		spec.Options[option] = resolved[0].value
	}
	return spec, nil
}

// substitutions builds the template variable set of one instance: its
// assignment plus the reserved "name" and "branch" variables.
func substitutions(in matrix.Instance, repo repository.Repository) map[string]string {
	vars := in.Assignment()
	vars["name"] = repo.Name()
	vars["branch"] = repo.Branch
	return vars
}

// AcceptsBranch is the branch filtering predicate consulted before a
// compilation is attempted at all. The reserved branch_patterns option lists
// regular expressions, matched anchored at the start of the branch name, so
// "fb-.*" and the shorter "fb-" both accept "fb-123". No branch_patterns
// entry means every branch is accepted.
func AcceptsBranch(doc *document.Document, branch string) (bool, error) {
	entries := doc.ByOption("branch_patterns")
	if len(entries) == 0 {
		return true, nil
	}
	for _, e := range entries {
		list, ok := e.Value.([]any)
		if !ok {
			return false, &document.MalformedDocumentError{Key: e.Key, Reason: fmt.Sprintf("expected a list value, got %T", e.Value)}
		}
		for _, item := range list {
			pattern, ok := item.(string)
			if !ok {
				return false, &document.MalformedDocumentError{Key: e.Key, Reason: fmt.Sprintf("patterns must be strings, got %T", item)}
			}
			re, err := regexp.Compile("^(?:" + pattern + ")")
			if err != nil {
				return false, &document.MalformedDocumentError{Key: e.Key, Reason: fmt.Sprintf("invalid branch pattern %q: %v", pattern, err)}
			}
			if re.MatchString(branch) {
				return true, nil
			}
		}
	}
	return false, nil
}

var trueValues = []string{"TRUE", "YES", "1"}
var falseValues = []string{"FALSE", "NO", "0"}

// parseBool interprets the document's textual booleans, case-insensitively.
func parseBool(text string) (bool, error) {
	upper := strings.ToUpper(text)
	for _, v := range trueValues {
		if upper == v {
			return true, nil
		}
	}
	for _, v := range falseValues {
		if upper == v {
			return false, nil
		}
	}
	return false, fmt.Errorf("value %q is not a recognized boolean (one of true/yes/1/false/no/0)", text)
}
