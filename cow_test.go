package qptrie

import "testing"

func TestCowIsolatesReadersFromInFlightDraft(t *testing.T) {
	h := Init[int](nil)
	defer h.Destroy()

	if err := h.CowStart(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, h, "example.com.", 1)
	h.CowFinish()

	if err := h.CowStart(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, h, "new.example.com.", 2)

	// The draft is not yet published: readers must still see only the
	// first generation.
	if _, ok := h.Get(MustFromString("new.example.com.")); ok {
		t.Fatal("reader observed an unpublished draft")
	}
	if got := h.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1 before CowFinish", got)
	}

	h.CowFinish()

	if _, ok := h.Get(MustFromString("new.example.com.")); !ok {
		t.Fatal("reader did not observe the published draft")
	}
	if got := h.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2 after CowFinish", got)
	}
}

func TestCowRejectsConcurrentWriter(t *testing.T) {
	h := Init[int](nil)
	defer h.Destroy()

	if err := h.CowStart(); err != nil {
		t.Fatal(err)
	}
	defer h.CowFinish()

	err := h.CowStart()
	if err == nil {
		t.Fatal("expected second CowStart to fail while a draft is open")
	}
	var qerr *Error
	if !asError(err, &qerr) || qerr.Kind != KindConcurrentWriter {
		t.Fatalf("expected KindConcurrentWriter, got %v", err)
	}
}

func TestCowAbortDiscardsDraft(t *testing.T) {
	h := Init[int](nil)
	defer h.Destroy()

	if err := h.CowStart(); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, h, "example.com.", 1)
	h.CowAbort()

	if got := h.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0 after CowAbort", got)
	}
	if err := h.CowStart(); err != nil {
		t.Fatalf("expected CowStart to succeed after CowAbort: %v", err)
	}
	h.CowFinish()
}

// asError is a direct type assertion to *Error (unlike errors.As, it does
// not unwrap), kept local to the test file so it doesn't need its own
// import juggling at every call site.
func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
