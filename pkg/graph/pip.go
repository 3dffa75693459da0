package graph

import (
	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/observe"
	"github.com/pipforge/pipcore/pkg/pipid"
	"github.com/pipforge/pipcore/pkg/seal"
)

// DeclaredInputs is a pip's declared dependency set: individual files plus
// whole sealed directories (§3 "Pip" entity).
type DeclaredInputs struct {
	Files             []identity.ID
	SealedDirectories []seal.Artifact
}

// DeclaredOutputs is a pip's declared output set: individual files plus
// opaque directory roots it produces.
type DeclaredOutputs struct {
	Files       []identity.ID
	OpaqueRoots []seal.Artifact
}

// ProcessOptions carries the per-pip policy toggles referenced throughout
// §4.4 (allow-undeclared-source-reads) and §9 (the configuration surface),
// plus the declared environment block a process pip is launched with. The
// environment is part of a process pip's declared identity: two pips with
// identical file inputs but different environment variables are different
// units of work and must not share a static fingerprint.
type ProcessOptions struct {
	AllowUndeclaredSourceReads bool
	EnvironmentVariables       map[string]string
}

// Pip is the in-memory graph node for one unit of work (§3 "Pip" entity).
type Pip struct {
	ID                pipid.PipID
	Kind              Kind
	SemiStableHash    uint64
	StaticFingerprint fingerprint.Fingerprint
	Inputs            DeclaredInputs
	Outputs           DeclaredOutputs
	Tags              []string
	Rules             []*observe.Rule
	Options           ProcessOptions
}
