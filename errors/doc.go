// Package errors provides structured error types for simhook.
//
// Errors are categorized by Phase (where in a boundary call the error
// occurred) and Kind (error category). The kinds mirror the bridge's failure
// taxonomy: a guest runtime that never started, a fault raised inside the
// guest, an entry point that did not resolve, and caller input of the wrong
// shape. A computation that ran but found no answer is not an error; it is
// reported on the returned value.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Symbol("pattern._pathLats").
//		Detail("expected f64 array, got kind %d", kind).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BoundaryFault("acos_x", "guest exception", nil)
//	err := errors.MalformedInput("lob %d has %d values, want 7", i, n)
//
// All errors implement the standard error interface and support errors.Is/As.
// IsKind matches a kind anywhere in the chain regardless of phase.
package errors
