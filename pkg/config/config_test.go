package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/pipforge/pipcore/pkg/identity"
	"github.com/pipforge/pipcore/pkg/membership"
	"github.com/pipforge/pipcore/pkg/perrors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().EnsureValid(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestDefaultFilesystemModeAndMembershipMode(t *testing.T) {
	c := Default()
	if c.FilesystemMode() != identity.CaseSensitive {
		t.Fatalf("expected case-sensitive default, got %v", c.FilesystemMode())
	}
	if c.DefaultMembershipMode() != membership.FullGraph {
		t.Fatalf("expected full-graph default, got %v", c.DefaultMembershipMode())
	}
}

func TestEnsureValidRejectsUnknownEnumValues(t *testing.T) {
	c := Default()
	c.FilesystemModeName = "bogus"
	if err := c.EnsureValid(); err == nil {
		t.Fatal("expected an error for an unrecognized filesystem mode")
	}

	c = Default()
	c.MembershipPolicyName = "bogus"
	if err := c.EnsureValid(); err == nil {
		t.Fatal("expected an error for an unrecognized membership policy")
	}
}

func TestApplyOverrideBooleanSuffixes(t *testing.T) {
	c := Default()
	if err := ApplyOverride(c, "/allow-undeclared-source-reads+"); err != nil {
		t.Fatal(err)
	}
	if !c.AllowUndeclaredSourceReads {
		t.Fatal("expected allow-undeclared-source-reads to be set")
	}
	if err := ApplyOverride(c, "/allow-undeclared-source-reads-"); err != nil {
		t.Fatal(err)
	}
	if c.AllowUndeclaredSourceReads {
		t.Fatal("expected allow-undeclared-source-reads to be cleared")
	}
}

func TestApplyOverrideValueForm(t *testing.T) {
	c := Default()
	if err := ApplyOverride(c, "/filesystem-mode:case-insensitive"); err != nil {
		t.Fatal(err)
	}
	if c.FilesystemMode() != identity.CaseInsensitive {
		t.Fatalf("expected case-insensitive, got %v", c.FilesystemMode())
	}
}

func TestApplyOverrideUnknownOptionFailsFast(t *testing.T) {
	c := Default()
	err := ApplyOverride(c, "/not-a-real-option:true")
	if err == nil {
		t.Fatal("expected an error for an unknown option")
	}
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
}

func TestApplyOverrideDeprecatedOptionNamesReplacement(t *testing.T) {
	c := Default()
	err := ApplyOverride(c, "/async-hashing+")
	if err == nil {
		t.Fatal("expected an error for a deprecated option")
	}
	code, ok := perrors.CodeOf(err)
	if !ok || code != perrors.CodeConfig {
		t.Fatalf("expected a ConfigError, got %v", err)
	}
	if !strings.Contains(err.Error(), Deprecated["async-hashing"]) {
		t.Fatalf("expected the error to name the replacement hint, got %v", err)
	}
}

func TestSaltChangesWithMembershipPolicy(t *testing.T) {
	a := Default()
	b := Default()
	b.MembershipPolicyName = RealAndMinimalPipGraph

	if a.Salt() == b.Salt() {
		t.Fatal("expected salts to differ when membership policy differs")
	}
}
