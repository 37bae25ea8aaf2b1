package layer

import "testing"

func TestParseRoundTrip(t *testing.T) {
	for _, l := range Order {
		got, err := Parse(l.String())
		if err != nil {
			t.Fatalf("parse %s: %v", l, err)
		}
		if got != l {
			t.Fatalf("round trip %s -> %s", l, got)
		}
	}
	if _, err := Parse("basement"); err == nil {
		t.Fatalf("expected error for unknown name")
	}
	if None.String() != "NONE" {
		t.Fatalf("None renders as %q", None.String())
	}
}

func TestOrderIsStable(t *testing.T) {
	want := [Count]Layer{Physical, Base, Core, Upper}
	if Order != want {
		t.Fatalf("enumeration order changed: %v", Order)
	}
}
