package fingerprint

import "testing"

func TestBuilderDeterministic(t *testing.T) {
	build := func() Fingerprint {
		return NewBuilder().
			AppendString("pip-1").
			AppendInt(42).
			AppendBool(true).
			AppendHash(AbsentFile()).
			Sum()
	}
	a := build()
	b := build()
	if a != b {
		t.Fatal("identical field sequences produced different fingerprints")
	}
}

func TestBuilderFieldOrderMatters(t *testing.T) {
	a := NewBuilder().AppendString("a").AppendString("bc").Sum()
	b := NewBuilder().AppendString("ab").AppendString("c").Sum()
	if a == b {
		t.Fatal("length-prefixing should prevent field concatenation collisions")
	}
}

func TestBuilderStringSetOrderIndependent(t *testing.T) {
	a := NewBuilder().AppendStringSet([]string{"x", "y", "z"}).Sum()
	b := NewBuilder().AppendStringSet([]string{"z", "x", "y"}).Sum()
	if a != b {
		t.Fatal("string set field should be independent of input order")
	}
}

func TestZeroFingerprintIsZero(t *testing.T) {
	var f Fingerprint
	if !f.IsZero() {
		t.Fatal("zero value should report IsZero")
	}
	nonZero := NewBuilder().AppendString("x").Sum()
	if nonZero.IsZero() {
		t.Fatal("non-trivial fingerprint incorrectly reported as zero")
	}
}
