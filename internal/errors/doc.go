// Package errors provides structured, actionable error messages for Weave.
//
// Every framework failure that reaches application code carries a stable
// code (e.g. "W001") that maps to:
//   - A short message describing the error
//   - A longer explanation
//   - A documentation URL
//
// # Error Categories
//
//   - binding: a binding or behavior was configured incorrectly
//   - observation: collection observation misuse
//   - scheduler: the flush queue could not settle
//   - resource: named resource lookups (behaviors, converters)
//   - store: state store dispatch and persistence
//   - config: project configuration loading and validation
//   - cli: command line usage
//
// # Usage
//
//	err := errors.New("W001").
//	    WithSubject(`listener "click"`).
//	    WithSuggestion("Apply & self only to event bindings such as click.trigger")
//
//	fmt.Println(err.Format())
//
// Errors wrap package sentinels so callers can keep using errors.Is:
//
//	return errors.New("W001").Wrap(binding.ErrEventBindingRequired)
package errors
