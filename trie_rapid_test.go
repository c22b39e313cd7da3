package qptrie

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// genLabel produces a short, DNS-legal label using only the "common"
// hostname alphabet, so generated names exercise the trie without
// depending on the escape-bucket machinery (covered separately by
// TestShiftTablePreservesOrder).
func genLabel(t *rapid.T) string {
	alphabet := "abcdefghijklmnopqrstuvwxyz0123456789-"
	n := rapid.IntRange(1, 8).Draw(t, "labelLen")
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rapid.IntRange(0, len(alphabet)-1).Draw(t, "labelChar")]
	}
	return string(b)
}

func genName(t *rapid.T) string {
	numLabels := rapid.IntRange(1, 4).Draw(t, "numLabels")
	s := ""
	for i := 0; i < numLabels; i++ {
		s += genLabel(t) + "."
	}
	return s
}

// TestRapidInsertGetRoundTrip is invariant 1/2 from §8: every inserted
// name is exactly retrievable, and ForEach always yields canonical order.
func TestRapidInsertGetRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 40).Draw(t, "count")
		seen := map[string]int{}
		var order []string

		h := Init[int](nil)
		defer h.Destroy()
		if err := h.CowStart(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < count; i++ {
			s := genName(t)
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = i
			order = append(order, s)
			if _, _, _, _, err := h.Add(MustFromString(s), i); err != nil {
				t.Fatal(err)
			}
		}
		h.CowFinish()

		for s, want := range seen {
			got, ok := h.Get(MustFromString(s))
			if !ok || got != want {
				t.Fatalf("Get(%q) = (%d, %v), want (%d, true)", s, got, ok, want)
			}
		}
		if got := h.Count(); int(got) != len(seen) {
			t.Fatalf("Count() = %d, want %d", got, len(seen))
		}

		var visited []Name
		h.ForEach(func(name Name, value int) { visited = append(visited, name) })
		if len(visited) != len(seen) {
			t.Fatalf("ForEach visited %d names, want %d", len(visited), len(seen))
		}
		for i := 1; i < len(visited); i++ {
			if Compare(visited[i-1], visited[i]) >= 0 {
				t.Fatalf("ForEach order violated at %d: %q then %q", i, visited[i-1], visited[i])
			}
		}
	})
}

// TestRapidFindLEAgreesWithSortedScan checks invariant 3/4 from §8:
// FindLE always returns the exact match if present, else the greatest
// stored name strictly less than the target, matching a naive sorted
// scan over everything that was actually inserted.
func TestRapidFindLEAgreesWithSortedScan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 30).Draw(t, "count")
		names := map[string]int{}

		h := Init[int](nil)
		defer h.Destroy()
		if err := h.CowStart(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < count; i++ {
			s := genName(t)
			if _, dup := names[s]; dup {
				continue
			}
			names[s] = i
			if _, _, _, _, err := h.Add(MustFromString(s), i); err != nil {
				t.Fatal(err)
			}
		}
		h.CowFinish()

		sorted := make([]string, 0, len(names))
		for s := range names {
			sorted = append(sorted, s)
		}
		sort.Slice(sorted, func(i, j int) bool {
			return Compare(MustFromString(sorted[i]), MustFromString(sorted[j])) < 0
		})

		target := genName(t)
		targetName := MustFromString(target)

		wantExact := false
		wantValue := 0
		wantOk := false
		for _, s := range sorted {
			c := Compare(MustFromString(s), targetName)
			if c > 0 {
				break
			}
			wantValue = names[s]
			wantOk = true
			wantExact = c == 0
		}

		gotExact, gotValue, gotOk := h.FindLE(targetName)
		if gotOk != wantOk {
			t.Fatalf("FindLE(%q) ok = %v, want %v", target, gotOk, wantOk)
		}
		if wantOk && (gotExact != wantExact || gotValue != wantValue) {
			t.Fatalf("FindLE(%q) = (%v, %d), want (%v, %d)", target, gotExact, gotValue, wantExact, wantValue)
		}
	})
}

// TestRapidDeleteThenAbsent is invariant 5 from §8: deleting a name makes
// it unreachable while every other name remains exactly as inserted.
func TestRapidDeleteThenAbsent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 30).Draw(t, "count")
		names := map[string]int{}

		h := Init[int](nil)
		defer h.Destroy()
		if err := h.CowStart(); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < count; i++ {
			s := genName(t)
			if _, dup := names[s]; dup {
				continue
			}
			names[s] = i
			if _, _, _, _, err := h.Add(MustFromString(s), i); err != nil {
				t.Fatal(err)
			}
		}
		if len(names) == 0 {
			h.CowFinish()
			return
		}

		var toDelete string
		for s := range names {
			toDelete = s
			break
		}
		if _, found, err := h.Del(MustFromString(toDelete)); err != nil || !found {
			t.Fatalf("Del(%q) = (_, %v, %v), want found", toDelete, found, err)
		}
		delete(names, toDelete)
		h.CowFinish()

		if _, ok := h.Get(MustFromString(toDelete)); ok {
			t.Fatalf("expected %q to be absent after Del", toDelete)
		}
		for s, want := range names {
			got, ok := h.Get(MustFromString(s))
			if !ok || got != want {
				t.Fatalf("Get(%q) = (%d, %v) after unrelated Del, want (%d, true)", s, got, ok, want)
			}
		}
	})
}
