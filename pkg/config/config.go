// Package config implements the configuration surface described in spec.md
// §9 ("Configuration surface"): every toggle that influences typing or
// fingerprinting is a field here, loaded from a single TOML file (via
// github.com/BurntSushi/toml, matching the teacher's encoding.toml.go) and
// overridable from the CLI with the retained "/name[:value]" grammar (§6).
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
	"github.com/pipforge/pipcore/pkg/perrors"
)

// MembershipPolicy selects which of §4.5's two mode-selection knobs governs
// read-only mounts without an overriding rule.
type MembershipPolicy string

const (
	// RealAndPipGraph selects FullGraph membership fingerprinting for
	// read-only mounts under static enumeration.
	RealAndPipGraph MembershipPolicy = "real-and-pip-graph"
	// RealAndMinimalPipGraph selects MinimalGraph membership
	// fingerprinting.
	RealAndMinimalPipGraph MembershipPolicy = "real-and-minimal-pip-graph"
)

// Configuration holds every toggle enumerated in spec.md §9 as influencing
// typing or fingerprinting, plus the ambient knobs needed to drive the
// cache lookup driver and the persisted file-content table.
type Configuration struct {
	// FilesystemModeName selects path-component comparison; resolved to an
	// identity.CaseSensitivity via FilesystemMode() since
	// identity.CaseSensitivity has no TOML codec of its own.
	FilesystemModeName string `toml:"filesystem-mode"`

	// ElideAbsentProbesUnderMinimalGraph enables absent-path elision under
	// minimal-graph enumeration (§4.4 "Absent-path elision").
	ElideAbsentProbesUnderMinimalGraph bool `toml:"elide-absent-probes-under-minimal-graph"`
	// TreatAbsentDirectoryAsExistentUnderOutput enables the "absent
	// directory treated as existent under opaque" policy (§4.4 Pass 2
	// case 3).
	TreatAbsentDirectoryAsExistentUnderOutput bool `toml:"treat-absent-directory-as-existent-under-output"`
	// AllowUndeclaredSourceReads mirrors the pip-level option of the same
	// name (§3 lifecycle invariant).
	AllowUndeclaredSourceReads bool `toml:"allow-undeclared-source-reads"`
	// PreservePathSetCasing keeps a path set's entries in their originally
	// observed case rather than canonicalizing to the filesystem mode's
	// comparison casing.
	PreservePathSetCasing bool `toml:"preserve-path-set-casing"`

	// MembershipPolicyName selects between RealAndPipGraph and
	// RealAndMinimalPipGraph for read-only mounts (§4.5).
	MembershipPolicyName MembershipPolicy `toml:"membership-policy"`

	// DeferMaterialization enables the deferred-materialization behavior
	// for exclusive opaques (§4.3, test scenario 5).
	DeferMaterialization bool `toml:"defer-materialization"`

	// FileContentTableTTLBuilds is the file-content table's time-to-live,
	// expressed in build counts (§6 "Persisted state").
	FileContentTableTTLBuilds int `toml:"file-content-ttl-builds"`

	// CacheMaxCandidates caps how many prior path sets the two-phase cache
	// lookup driver considers per pip (§4.6 step 2).
	CacheMaxCandidates int `toml:"cache-max-candidates"`

	// WarnAsError promotes CacheInfrastructureError and other warning-level
	// conditions to user-visible failures (§7 "User-visible failure
	// behavior").
	WarnAsError bool `toml:"warn-as-error"`
}

// Default returns the baseline configuration applied before a file is
// loaded and before any override is parsed.
func Default() *Configuration {
	return &Configuration{
		FilesystemModeName:   "case-sensitive",
		MembershipPolicyName: RealAndPipGraph,
		CacheMaxCandidates:   8,
	}
}

// FilesystemMode resolves FilesystemModeName to the identity.CaseSensitivity
// value components actually consume. Callers should only invoke this after
// EnsureValid (or Load, which calls it) has confirmed the name is
// recognized.
func (c *Configuration) FilesystemMode() identity.CaseSensitivity {
	if c.FilesystemModeName == "case-insensitive" {
		return identity.CaseInsensitive
	}
	return identity.CaseSensitive
}

// Deprecated lists option names that previously existed but have been
// removed, mapped to a hint for the replacement (or lack thereof), per
// spec.md §9's resolved open question: "fail fast on unknown options and
// expose a separate deprecation list" rather than the source's silent
// no-ops.
var Deprecated = map[string]string{
	"async-hashing":       "removed; content hashing is always performed off the typing pass",
	"legacy-cache-format": "removed; the path-set schema is version-tagged instead",
	"skip-seal-validation": "removed; seal contents are always validated",
}

// ErrUnknownOption is wrapped by the error returned from ApplyOverride and
// Load when an option name matches neither the current schema nor
// Deprecated.
var ErrUnknownOption = fmt.Errorf("unknown configuration option")

// Load reads a TOML configuration file at path on top of Default, then
// validates the result.
func Load(path string) (*Configuration, error) {
	config := Default()
	metadata, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, perrors.New(perrors.CodeConfig, 401, "unable to load configuration file", err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		name := undecoded[0].String()
		if hint, deprecated := Deprecated[name]; deprecated {
			return nil, perrors.New(perrors.CodeConfig, 407,
				fmt.Sprintf("option %q was removed: %s", name, hint), nil)
		}
		return nil, perrors.New(perrors.CodeConfig, 408,
			fmt.Sprintf("unknown option %q", name), ErrUnknownOption)
	}
	if err := config.EnsureValid(); err != nil {
		return nil, err
	}
	return config, nil
}

// EnsureValid checks that every enum-valued field holds a recognized
// value, per the fail-fast resolution of spec.md §9's open question.
func (c *Configuration) EnsureValid() error {
	switch c.FilesystemModeName {
	case "case-sensitive", "case-insensitive":
	default:
		return perrors.New(perrors.CodeConfig, 402,
			fmt.Sprintf("unknown filesystem-mode %q", c.FilesystemModeName), nil)
	}
	switch c.MembershipPolicyName {
	case RealAndPipGraph, RealAndMinimalPipGraph:
	default:
		return perrors.New(perrors.CodeConfig, 403,
			fmt.Sprintf("unknown membership-policy %q", c.MembershipPolicyName), nil)
	}
	if c.FileContentTableTTLBuilds < 0 {
		return perrors.New(perrors.CodeConfig, 404, "file-content-ttl-builds cannot be negative", nil)
	}
	if c.CacheMaxCandidates < 0 {
		return perrors.New(perrors.CodeConfig, 405, "cache-max-candidates cannot be negative", nil)
	}
	return nil
}

// DefaultMembershipMode returns the membership.Mode a read-only mount uses
// under static enumeration, absent any overriding per-mount rule (§4.5).
func (c *Configuration) DefaultMembershipMode() membership.Mode {
	if c.MembershipPolicyName == RealAndMinimalPipGraph {
		return membership.MinimalGraph
	}
	return membership.FullGraph
}

// Salt folds every configuration toggle that is build-wide rather than
// per-observation (filesystem mode, membership policy, and deferred
// materialization; the remaining
// toggles fed into a pip's Environment instead go through
// observe.Environment.UnsafeOptionsTag) into the string fed to
// graph.Salts.Configuration, so that a configuration change invalidates
// every pip's static fingerprint without touching its declared inputs
// (§4.7).
func (c *Configuration) Salt() string {
	b := fingerprint.NewBuilder()
	b.AppendString(c.FilesystemModeName)
	b.AppendString(string(c.MembershipPolicyName))
	b.AppendBool(c.DeferMaterialization)
	return fingerprint.EncodeHex(b.Sum())
}

// ApplyOverride parses a single "/name[:value]" CLI override (§6 "CLI
// surface") and applies it to c. Boolean options additionally accept a
// trailing "+"/"-" suffix (set/clear) in place of ":value".
func ApplyOverride(c *Configuration, raw string) error {
	name := strings.TrimPrefix(raw, "/")

	var value string
	switch {
	case strings.Contains(name, ":"):
		parts := strings.SplitN(name, ":", 2)
		name, value = parts[0], parts[1]
	case strings.HasSuffix(name, "+"):
		name, value = strings.TrimSuffix(name, "+"), "true"
	case strings.HasSuffix(name, "-"):
		name, value = strings.TrimSuffix(name, "-"), "false"
	default:
		return perrors.New(perrors.CodeConfig, 406,
			fmt.Sprintf("override %q is missing a value or +/- suffix", raw), nil)
	}

	switch name {
	case "filesystem-mode":
		if value != "case-sensitive" && value != "case-insensitive" {
			return perrors.New(perrors.CodeConfig, 402,
				fmt.Sprintf("unknown filesystem-mode %q", value), nil)
		}
		c.FilesystemModeName = value
		return nil
	case "elide-absent-probes-under-minimal-graph":
		return applyBool(&c.ElideAbsentProbesUnderMinimalGraph, value)
	case "treat-absent-directory-as-existent-under-output":
		return applyBool(&c.TreatAbsentDirectoryAsExistentUnderOutput, value)
	case "allow-undeclared-source-reads":
		return applyBool(&c.AllowUndeclaredSourceReads, value)
	case "preserve-path-set-casing":
		return applyBool(&c.PreservePathSetCasing, value)
	case "membership-policy":
		c.MembershipPolicyName = MembershipPolicy(value)
		return nil
	case "defer-materialization":
		return applyBool(&c.DeferMaterialization, value)
	case "warn-as-error":
		return applyBool(&c.WarnAsError, value)
	case "file-content-ttl-builds", "cache-max-candidates":
		n, err := strconv.Atoi(value)
		if err != nil {
			return perrors.New(perrors.CodeConfig, 410,
				fmt.Sprintf("invalid integer value %q", value), nil)
		}
		if name == "file-content-ttl-builds" {
			c.FileContentTableTTLBuilds = n
		} else {
			c.CacheMaxCandidates = n
		}
		return nil
	default:
		if hint, deprecated := Deprecated[name]; deprecated {
			return perrors.New(perrors.CodeConfig, 407,
				fmt.Sprintf("option %q was removed: %s", name, hint), nil)
		}
		return perrors.New(perrors.CodeConfig, 408,
			fmt.Sprintf("unknown option %q", name), ErrUnknownOption)
	}
}

func applyBool(field *bool, value string) error {
	switch value {
	case "true":
		*field = true
	case "false":
		*field = false
	default:
		return perrors.New(perrors.CodeConfig, 409,
			fmt.Sprintf("invalid boolean value %q", value), nil)
	}
	return nil
}
