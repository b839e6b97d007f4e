package feedback

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/vtstream/internal/pagecache"
)

func newTestAnalyzer(t *testing.T, mips int) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{Mips: mips, RequestsPerMip: 256, DedupBuckets: 4096, DedupKeys: 16})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func newTestCache(t *testing.T) *pagecache.Cache {
	t.Helper()
	c, err := pagecache.New(4, 4, 64)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func allRequests(a *Analyzer) []pagecache.PageID {
	var out []pagecache.PageID
	for mip := range a.mips {
		out = append(out, a.Requests(mip)...)
	}
	return out
}

// =============================================================================
// Sample Packing Tests
// =============================================================================

func TestPackUnpack(t *testing.T) {
	s := Pack(4095, 17, 10)
	x, y, mip := Unpack(s)
	if x != 4095 || y != 17 || mip != 10 {
		t.Errorf("Unpack(Pack(4095,17,10)) = %d,%d,%d", x, y, mip)
	}
	if s != 4095|17<<12|10<<24 {
		t.Errorf("Pack layout = %#x", s)
	}
}

func TestEmptySampleIgnored(t *testing.T) {
	a := newTestAnalyzer(t, 4)
	st := a.Analyze([]uint32{Empty, Pack(0, 0, 4), Pack(0, 0, 200)}, newTestCache(t))
	if st.Active != 0 || a.Pending() != 0 {
		t.Errorf("Active = %d, Pending = %d; want 0, 0", st.Active, a.Pending())
	}
}

// =============================================================================
// Analysis Tests
// =============================================================================

func TestAnalyze_WalksMipChain(t *testing.T) {
	a := newTestAnalyzer(t, 4)
	st := a.Analyze([]uint32{Pack(10, 10, 0)}, newTestCache(t))

	want := []pagecache.PageID{
		{X: 10, Y: 10, Mip: 0},
		{X: 5, Y: 5, Mip: 1},
		{X: 2, Y: 2, Mip: 2},
		{X: 1, Y: 1, Mip: 3},
	}
	if diff := cmp.Diff(want, allRequests(a)); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if st.Unique != 4 || st.Requested != 4 {
		t.Errorf("Unique/Requested = %d/%d, want 4/4", st.Unique, st.Requested)
	}
}

func TestAnalyze_DeduplicatesAncestors(t *testing.T) {
	a := newTestAnalyzer(t, 4)
	samples := []uint32{
		Pack(10, 10, 0),
		Pack(10, 10, 0),
		Pack(11, 10, 0), // shares (5,5,1) and above
	}
	st := a.Analyze(samples, newTestCache(t))

	if st.Active != 3 {
		t.Errorf("Active = %d, want 3", st.Active)
	}
	if st.Unique != 5 {
		t.Errorf("Unique = %d, want 5", st.Unique)
	}
	if got := len(a.Requests(0)); got != 2 {
		t.Errorf("mip 0 requests = %d, want 2", got)
	}
	for mip := 1; mip < 4; mip++ {
		if got := len(a.Requests(mip)); got != 1 {
			t.Errorf("mip %d requests = %d, want 1", mip, got)
		}
	}
}

func TestAnalyze_PromotesResident(t *testing.T) {
	c := newTestCache(t)
	a := newTestAnalyzer(t, 2)

	older := c.Insert(pagecache.PageID{X: 0, Y: 0, Mip: 1})
	c.Admit(older)
	newer := c.Insert(pagecache.PageID{X: 3, Y: 3, Mip: 0})
	c.Admit(newer)

	st := a.Analyze([]uint32{Pack(0, 0, 0)}, c)

	if st.Promoted != 1 {
		t.Errorf("Promoted = %d, want 1", st.Promoted)
	}
	// Root became most recent, leaving (3,3,0) as the LRU tail.
	oldest, _ := c.Oldest()
	if oldest.ID != (pagecache.PageID{X: 3, Y: 3, Mip: 0}) {
		t.Errorf("Oldest() = %v, want (3,3)@0", oldest.ID)
	}
	if diff := cmp.Diff([]pagecache.PageID{{X: 0, Y: 0, Mip: 0}}, allRequests(a)); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_SkipsPending(t *testing.T) {
	c := newTestCache(t)
	a := newTestAnalyzer(t, 2)
	c.Insert(pagecache.PageID{X: 1, Y: 1, Mip: 0})

	a.Analyze([]uint32{Pack(1, 1, 0)}, c)

	if diff := cmp.Diff([]pagecache.PageID{{X: 0, Y: 0, Mip: 1}}, allRequests(a)); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_PerMipCapacity(t *testing.T) {
	a, err := NewAnalyzer(Config{Mips: 4, RequestsPerMip: 2, DedupBuckets: 64, DedupKeys: 16})
	if err != nil {
		t.Fatal(err)
	}
	samples := []uint32{Pack(0, 0, 0), Pack(1, 0, 0), Pack(2, 0, 0), Pack(3, 0, 0)}
	st := a.Analyze(samples, newTestCache(t))

	if len(a.Requests(0)) != 2 {
		t.Errorf("mip 0 requests = %d, want 2", len(a.Requests(0)))
	}
	if st.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", st.Dropped)
	}
}

func TestAnalyze_DedupOverflowStillProcesses(t *testing.T) {
	a, err := NewAnalyzer(Config{Mips: 1, RequestsPerMip: 16, DedupBuckets: 1, DedupKeys: 2})
	if err != nil {
		t.Fatal(err)
	}
	st := a.Analyze([]uint32{Pack(0, 0, 0), Pack(1, 0, 0), Pack(2, 0, 0)}, newTestCache(t))
	if st.Overflow != 1 {
		t.Errorf("Overflow = %d, want 1", st.Overflow)
	}
	if len(a.Requests(0)) != 3 {
		t.Errorf("requests = %d, want 3", len(a.Requests(0)))
	}
	if st.LongestChain != 2 {
		t.Errorf("LongestChain = %d, want 2", st.LongestChain)
	}
}

func TestAnalyze_ClearsPreviousFrame(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	c := newTestCache(t)
	a.Analyze([]uint32{Pack(1, 0, 0)}, c)
	a.Analyze([]uint32{Pack(0, 1, 0)}, c)

	want := []pagecache.PageID{{X: 0, Y: 1, Mip: 0}, {X: 0, Y: 0, Mip: 1}}
	if diff := cmp.Diff(want, allRequests(a)); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Drain Tests
// =============================================================================

func TestDrain_BudgetAdmitsExactly(t *testing.T) {
	a := newTestAnalyzer(t, 3)
	a.Analyze([]uint32{Pack(0, 0, 0), Pack(3, 3, 0), Pack(2, 0, 0)}, newTestCache(t))
	if a.Pending() != 7 {
		t.Fatalf("Pending() = %d, want 7", a.Pending())
	}

	var got []pagecache.PageID
	n := a.Drain(2, func(id pagecache.PageID) bool {
		got = append(got, id)
		return true
	})
	if n != 2 || len(got) != 2 {
		t.Fatalf("Drain accepted %d (%v), want 2", n, got)
	}
	// Coarsest first: the root, then the first mip 1 request.
	want := []pagecache.PageID{{X: 0, Y: 0, Mip: 2}, {X: 0, Y: 0, Mip: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("drain order mismatch (-want +got):\n%s", diff)
	}
	if a.Pending() != 0 {
		t.Errorf("Pending() after Drain = %d, want 0", a.Pending())
	}
}

func TestDrain_FivePendingBudgetTwo(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	var samples []uint32
	for x := range 5 {
		samples = append(samples, Pack(x, 0, 0))
	}
	a.Analyze(samples, newTestCache(t))

	produced := 0
	if n := a.Drain(2, func(pagecache.PageID) bool { produced++; return true }); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if produced != 2 {
		t.Errorf("produce called %d times, want 2", produced)
	}
}

func TestDrain_RejectedDoNotUseBudget(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	a.Analyze([]uint32{Pack(0, 0, 0), Pack(1, 0, 0), Pack(2, 0, 0)}, newTestCache(t))

	calls := 0
	n := a.Drain(2, func(id pagecache.PageID) bool {
		calls++
		return id.X != 0
	})
	if n != 2 || calls != 3 {
		t.Errorf("Drain() = %d after %d calls, want 2 after 3", n, calls)
	}
}

func TestDrain_ZeroBudget(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	a.Analyze([]uint32{Pack(0, 0, 0)}, newTestCache(t))
	if n := a.Drain(0, func(pagecache.PageID) bool { t.Error("produce called"); return true }); n != 0 {
		t.Errorf("Drain(0) = %d", n)
	}
}

// =============================================================================
// DoubleBuffer Tests
// =============================================================================

func TestDoubleBuffer(t *testing.T) {
	d := NewDoubleBuffer(4)
	if _, ok := d.Front(); ok {
		t.Error("Front() before Swap should not be ready")
	}
	d.Back()[0] = Pack(1, 2, 3)
	d.Swap()

	front, ok := d.Front()
	if !ok || front[0] != Pack(1, 2, 3) {
		t.Fatalf("Front() = %v, %v", front, ok)
	}
	if d.Back()[0] != Empty {
		t.Errorf("new back buffer should start Empty, got %#x", d.Back()[0])
	}
}
