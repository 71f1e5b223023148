package document

import "sort"

// Kind describes the value shape an option accepts.
type Kind int

const (
	// KindString options take a single scalar value.
	KindString Kind = iota
	// KindList options take a list of values and flatten when resolved from
	// multiple sources.
	KindList
	// KindMap options take a nested mapping.
	KindMap
	// KindMapOrString options accept either a mapping or a scalar shorthand.
	KindMapOrString
)

type optionSpec struct {
	kind Kind

	// reserved options steer the compiler itself and never reach the
	// serializer.
	reserved bool
}

// catalog is the closed set of recognized option names. The serializer
// registry is validated against it at startup, so an option listed here
// without a renderer (or vice versa) fails fast instead of at compile time.
var catalog = map[string]optionSpec{
	"additional_repositories": {kind: KindList},
	"auth_token":              {kind: KindString},
	"boosttest_patterns":      {kind: KindList},
	"build_batch_commands":    {kind: KindList},
	"build_python_commands":   {kind: KindList},
	"build_shell_commands":    {kind: KindList},
	"console_color":           {kind: KindString},
	"coverage":                {kind: KindMap},
	"cron":                    {kind: KindString},
	"custom_workspace":        {kind: KindString},
	"description_regex":       {kind: KindString},
	"display_name":            {kind: KindString},
	"email_notification":      {kind: KindMapOrString},
	"git":                     {kind: KindMap},
	"jsunit_patterns":         {kind: KindList},
	"junit_patterns":          {kind: KindList},
	"label_expression":        {kind: KindString},
	"notification":            {kind: KindMap},
	"notify_stash":            {kind: KindMapOrString},
	"parameters":              {kind: KindList},
	"scm_poll":                {kind: KindString},
	"slack":                   {kind: KindMap},
	"timeout":                 {kind: KindString},
	"timeout_no_activity":     {kind: KindString},
	"timestamps":              {kind: KindString},
	"trigger_jobs":            {kind: KindMap},
	"warnings":                {kind: KindMap},

	"branch_patterns":    {kind: KindList, reserved: true},
	"exclude":            {kind: KindString, reserved: true},
	"ignore_unmatchable": {kind: KindString, reserved: true},
	"matrix":             {kind: KindMap, reserved: true},
}

// Known reports whether the option name is part of the catalog.
func Known(option string) bool {
	_, ok := catalog[option]
	return ok
}

// Reserved reports whether the option is consumed by the compiler itself.
func Reserved(option string) bool {
	return catalog[option].reserved
}

// ListSemantics reports whether multiple resolved sources for the option
// flatten into one list. Every other option, including unknown ones, has
// scalar semantics: a second resolved source is a conflict.
func ListSemantics(option string) bool {
	spec, ok := catalog[option]
	return ok && spec.kind == KindList
}

// KnownOptions returns every catalog option name in sorted order.
func KnownOptions() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderableOptions returns the catalog options the serializer must provide a
// renderer for, in sorted order.
func RenderableOptions() []string {
	names := make([]string, 0, len(catalog))
	for name, spec := range catalog {
		if !spec.reserved {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
