package perrors

// Outcome is the per-pip result variant produced by the observed-input
// processor and the cache lookup driver. It stands in for the taxonomy's use
// of exceptions for flow control in the teacher's source language: instead of
// throwing, callers return an Outcome (possibly wrapping an *Error) and
// combine outcomes from independent sub-computations with Combine.
type Outcome int

const (
	// Success indicates the computation completed and produced a usable
	// result.
	Success Outcome = iota
	// Mismatched indicates the computation completed but the result
	// disagrees with what was expected — a cache miss, not an error. The
	// overall build proceeds.
	Mismatched
	// Aborted indicates the computation encountered a fatal condition for
	// this pip. The pip is stopped.
	Aborted
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Mismatched:
		return "Mismatched"
	case Aborted:
		return "Aborted"
	default:
		return "UnknownOutcome"
	}
}

// Combine implements the "max" combination rule from the error propagation
// design: Aborted overrides Mismatched overrides Success.
func Combine(a, b Outcome) Outcome {
	if a > b {
		return a
	}
	return b
}

// CombineAll reduces a sequence of outcomes with Combine, returning Success
// for an empty sequence.
func CombineAll(outcomes ...Outcome) Outcome {
	result := Success
	for _, o := range outcomes {
		result = Combine(result, o)
	}
	return result
}
