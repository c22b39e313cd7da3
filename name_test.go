package qptrie

import "testing"

func TestNameFromStringRootTerminated(t *testing.T) {
	cases := []string{"example.com.", "example.com", "www.example.com.", "."}
	for _, c := range cases {
		n, err := FromString(c)
		if err != nil {
			t.Fatalf("FromString(%q): %v", c, err)
		}
		if len(n.Wire()) == 0 || n.Wire()[len(n.Wire())-1] != 0 {
			t.Errorf("FromString(%q) wire not root-terminated: %v", c, n.Wire())
		}
	}
}

func TestNameEscapes(t *testing.T) {
	n, err := FromString(`a\.b.example.`)
	if err != nil {
		t.Fatal(err)
	}
	labels := n.Labels()
	if len(labels) != 2 {
		t.Fatalf("expected 2 labels, got %d: %v", len(labels), labels)
	}
	if string(labels[0]) != "a.b" {
		t.Errorf("expected first label %q, got %q", "a.b", labels[0])
	}
}

func TestNameCaseFold(t *testing.T) {
	a := MustFromString("WWW.Example.COM.")
	b := MustFromString("www.example.com.")
	if !a.Equal(b) {
		t.Errorf("expected case-insensitive equality")
	}
}

func TestNameCompareRightmostFirst(t *testing.T) {
	// Names sharing a TLD/apex should sort together even when their
	// leftmost labels would otherwise suggest a different order.
	a := MustFromString("zzz.example.")
	b := MustFromString("aaa.example.org.")
	if Compare(a, b) >= 0 {
		t.Errorf("expected %q < %q (different TLDs, 'example' < 'org')", a, b)
	}
}

func TestNameCompareOrdering(t *testing.T) {
	names := []string{
		"example.com.",
		"a.example.com.",
		"b.example.com.",
		"example.org.",
	}
	for i := 0; i < len(names); i++ {
		for j := 0; j < len(names); j++ {
			a, b := MustFromString(names[i]), MustFromString(names[j])
			got := Compare(a, b)
			switch {
			case i < j && got >= 0:
				t.Errorf("Compare(%q, %q) = %d, want < 0", names[i], names[j], got)
			case i > j && got <= 0:
				t.Errorf("Compare(%q, %q) = %d, want > 0", names[i], names[j], got)
			case i == j && got != 0:
				t.Errorf("Compare(%q, %q) = %d, want 0", names[i], names[j], got)
			}
		}
	}
}

func TestNameLabelTooLong(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	_, err := FromString(string(long) + ".example.")
	if err == nil {
		t.Fatal("expected error for 64-byte label")
	}
}
