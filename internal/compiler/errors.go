package compiler

import (
	"fmt"
	"strings"
)

// OptionConflictError reports two or more resolved sources colliding on a
// scalar-semantics option for one matrix instance. List-semantics options
// flatten instead; everything else fails closed.
type OptionConflictError struct {
	// Option both sources target.
	Option string

	// Instance is the rendered variable assignment the conflict happened for.
	Instance string

	// Keys are the qualified keys that resolved for the instance.
	Keys []string
}

func (e *OptionConflictError) Error() string {
	return fmt.Sprintf("option %q has conflicting sources for %s: %s",
		e.Option, e.Instance, strings.Join(e.Keys, ", "))
}

// UnmatchableConditionError reports a conditioned key whose clauses cannot
// match any matrix instance, whatever the branch. Usually a typo in a
// variable name or value; set ignore_unmatchable to compile anyway.
type UnmatchableConditionError struct {
	Key string
}

func (e *UnmatchableConditionError) Error() string {
	return fmt.Sprintf("condition of key %q can never be matched by any matrix instance", e.Key)
}
