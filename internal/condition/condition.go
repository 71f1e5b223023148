// Package condition implements the clause syntax used to scope document
// options to a subset of matrix instances.
//
// A qualified key such as "platform-win.*:branch-master:timeout" carries two
// clauses ("platform-win.*" and "branch-master") ahead of the option name.
// Each clause names a matrix variable (or the reserved name "branch") and a
// regular expression its value must satisfy.
package condition

import (
	"fmt"
	"regexp"
	"strings"
)

// BranchVariable is the reserved clause name matched against the branch a
// compilation runs for instead of a matrix variable.
const BranchVariable = "branch"

// Clause is one parsed condition, e.g. "platform-win.*".
type Clause struct {
	// Variable is the matrix variable name, or BranchVariable.
	Variable string

	// Pattern is the raw value pattern as written in the document.
	Pattern string

	re *regexp.Regexp
}

// ParseClause splits a "name-pattern" token into a Clause. The pattern is
// compiled for full matches: "win" matches the value "win" but not "win64".
func ParseClause(token string) (Clause, error) {
	name, pattern, ok := strings.Cut(token, "-")
	if !ok || name == "" {
		return Clause{}, fmt.Errorf("condition %q must have the form \"name-pattern\"", token)
	}
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return Clause{}, fmt.Errorf("condition %q has an invalid value pattern: %w", token, err)
	}
	return Clause{Variable: name, Pattern: pattern, re: re}, nil
}

func (c Clause) String() string {
	return c.Variable + "-" + c.Pattern
}

// Facts is the set of values clauses are tested against for one matrix
// instance: every variable's primary value plus its aliases, and the branch.
type Facts struct {
	// Values maps each matrix variable to its primary value followed by any
	// declared aliases. A clause matches when its pattern matches any entry.
	Values map[string][]string

	// Branch the document is being compiled for.
	Branch string

	// AnyBranch makes branch clauses match unconditionally. Used when probing
	// whether a clause is satisfiable at all, independent of a concrete branch.
	AnyBranch bool
}

// Match reports whether the clause holds for the given facts. A clause over a
// variable that is not declared in the matrix never matches.
func (c Clause) Match(f Facts) bool {
	if c.Variable == BranchVariable {
		return f.AnyBranch || c.re.MatchString(f.Branch)
	}
	values, ok := f.Values[c.Variable]
	if !ok {
		return false
	}
	for _, v := range values {
		if c.re.MatchString(v) {
			return true
		}
	}
	return false
}

// MatchAll reports whether every clause in the list holds. An empty list
// (a bare, unconditioned key) always matches.
func MatchAll(clauses []Clause, f Facts) bool {
	for _, c := range clauses {
		if !c.Match(f) {
			return false
		}
	}
	return true
}
