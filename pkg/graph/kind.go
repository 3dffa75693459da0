// Package graph implements the fragment graph builder (component I): an
// add-pip family of operations, one per pip kind, that assigns a fresh pip
// id, rejects duplicate or conflicting producers, and computes each pip's
// static fingerprint at add time (§4.7).
package graph

// Kind identifies which of spec.md's eight pip variants a Pip is.
type Kind uint8

const (
	// Process runs an external hermetic process.
	Process Kind = iota
	// Copy copies a single declared source to a single declared output.
	Copy
	// Write materializes literal content to a declared output.
	Write
	// IPC invokes an in-process service call.
	IPC
	// SealDirectory commits a sealed-directory's contents (§4.2).
	SealDirectory
	// Value produces a typed, in-memory value consumed by downstream pips.
	Value
	// Spec evaluates a front-end specification file into further pips.
	Spec
	// Module resolves a module reference into a graph fragment.
	Module
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Process:
		return "process"
	case Copy:
		return "copy"
	case Write:
		return "write"
	case IPC:
		return "ipc"
	case SealDirectory:
		return "seal-directory"
	case Value:
		return "value"
	case Spec:
		return "spec"
	case Module:
		return "module"
	default:
		return "unknown"
	}
}
