package qptrie

import (
	"io"
	"unsafe"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// PrintMemStats writes a human-readable summary of the live generation's
// memory footprint and GC statistics to w, for operators diagnosing
// memory growth the way the spec's "memory diagnostics" collaborator
// describes. It returns the total bytes currently in use so callers can
// also feed it into their own monitoring without re-parsing the text.
func (h *Handle[V]) PrintMemStats(w io.Writer) (bytesInUse uint64, err error) {
	st := h.live.Load()
	if st == nil {
		return 0, newError("PrintMemStats", KindAllocFailure, nil)
	}

	var liveNodes, pageBytes uint64
	for _, u := range st.usage {
		liveNodes += uint64(u.live())
	}
	pageBytes = st.totalCapacity()
	bytesInUse = liveNodes * uint64(nodeSize[V]())

	stats := h.GCStats()
	pendingFree := 0
	if h.laterList != nil {
		pendingFree = h.laterList.Len()
	}

	p := message.NewPrinter(language.English)
	_, err = p.Fprintf(w,
		"qptrie: %v names, %v live nodes, %v pages (%v bytes reserved, %v bytes in use)\n"+
			"qptrie: gc runs=%v mean=%vns reclaimed(mean)=%v bytes, %v pages pending free\n",
		number.Decimal(st.count),
		number.Decimal(liveNodes),
		number.Decimal(len(st.pages)),
		number.Decimal(pageBytes),
		number.Decimal(bytesInUse),
		number.Decimal(stats.Runs),
		number.Decimal(int64(stats.MeanNanos)),
		number.Decimal(int64(stats.MeanReclaim)),
		number.Decimal(pendingFree),
	)
	return bytesInUse, err
}

// nodeSize reports the in-memory footprint of one node[V] cell for the
// instantiated value type V.
func nodeSize[V any]() uintptr {
	var n node[V]
	return unsafe.Sizeof(n)
}
