package indirection

import (
	"math/rand/v2"
	"testing"
)

func mustNew(t *testing.T, mips int) *Table {
	t.Helper()
	tbl, err := New(mips)
	if err != nil {
		t.Fatal(err)
	}
	return tbl
}

// =============================================================================
// Layout Tests
// =============================================================================

func TestNew_Layout(t *testing.T) {
	tbl := mustNew(t, 4)
	if tbl.TexelCount() != 64+16+4+1 {
		t.Errorf("TexelCount() = %d, want 85", tbl.TexelCount())
	}
	wantOffsets := []int{0, 64, 80, 84}
	for mip, want := range wantOffsets {
		if got := tbl.MipOffset(mip); got != want {
			t.Errorf("MipOffset(%d) = %d, want %d", mip, got, want)
		}
		w := MipWidth(mip, 4)
		if len(tbl.Bytes(mip)) != w*w*TexelSize {
			t.Errorf("len(Bytes(%d)) = %d, want %d", mip, len(tbl.Bytes(mip)), w*w*TexelSize)
		}
	}
}

func TestNew_InvalidMips(t *testing.T) {
	for _, mips := range []int{0, 17} {
		if _, err := New(mips); err == nil {
			t.Errorf("New(%d) should fail", mips)
		}
	}
}

func TestReset_Unmapped(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.Add(0, 0, 2, 1, 1)
	tbl.Reset()
	for mip := range 3 {
		w := MipWidth(mip, 3)
		for y := range w {
			for x := range w {
				if e := tbl.At(x, y, mip); e.Mapped() {
					t.Fatalf("At(%d,%d,%d) = %+v after Reset", x, y, mip, e)
				}
			}
		}
	}
}

// =============================================================================
// Add / Remove Tests
// =============================================================================

func TestAdd_WritesNativeAndFootprint(t *testing.T) {
	tbl := mustNew(t, 4)
	tbl.Add(1, 0, 2, 7, 9)

	if e := tbl.At(1, 0, 2); e != (Entry{SlotX: 7, SlotY: 9, Mip: 2}) {
		t.Errorf("native texel = %+v", e)
	}
	// Footprint of (1,0,2) at mip 0 is x in [4,8), y in [0,4).
	for y := range 8 {
		for x := range 8 {
			inside := x >= 4 && x < 8 && y < 4
			if got := tbl.At(x, y, 0).Mip == 2; got != inside {
				t.Errorf("At(%d,%d,0) mapped to mip 2 = %v, want %v", x, y, got, inside)
			}
		}
	}
	if e := tbl.At(0, 0, 2); e.Mapped() {
		t.Errorf("neighbour texel changed: %+v", e)
	}
}

func TestAdd_KeepsFinerOwners(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.Add(1, 1, 0, 4, 4)
	tbl.Add(0, 0, 1, 2, 2)

	if e := tbl.At(1, 1, 0); e.Mip != 0 || e.SlotX != 4 {
		t.Errorf("finer owner overwritten: %+v", e)
	}
	if e := tbl.At(0, 0, 0); e.Mip != 1 || e.SlotX != 2 {
		t.Errorf("sibling not redirected to mip 1: %+v", e)
	}
}

func TestRemove_FallsBackToParent(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.Add(0, 0, 2, 0, 0) // root
	tbl.Add(1, 1, 1, 3, 1)
	tbl.Add(2, 3, 0, 5, 6)

	if !tbl.Remove(1, 1, 1) {
		t.Fatal("Remove returned false for a non-coarsest page")
	}
	root := Entry{SlotX: 0, SlotY: 0, Mip: 2}
	if e := tbl.At(1, 1, 1); e != root {
		t.Errorf("native texel after Remove = %+v, want %+v", e, root)
	}
	// (2,3,0) still owns its texel; its siblings fall back to the root.
	if e := tbl.At(2, 3, 0); e.Mip != 0 {
		t.Errorf("finer page lost its texel: %+v", e)
	}
	for _, p := range [][2]int{{2, 2}, {3, 2}, {3, 3}} {
		if e := tbl.At(p[0], p[1], 0); e != root {
			t.Errorf("At(%d,%d,0) = %+v, want root", p[0], p[1], e)
		}
	}
}

func TestRemove_CoarsestIsNoop(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.Add(0, 0, 2, 4, 5)
	if tbl.Remove(0, 0, 2) {
		t.Error("Remove on the coarsest mip should report false")
	}
	if e := tbl.At(0, 0, 2); e.SlotX != 4 || e.SlotY != 5 {
		t.Errorf("coarsest texel changed: %+v", e)
	}
}

func TestUnmap_ClearsServedTexels(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.Add(0, 0, 2, 4, 5)
	tbl.Add(1, 1, 0, 7, 7)
	tbl.Unmap(0, 0, 2)

	if e := tbl.At(0, 0, 2); e.Mapped() {
		t.Errorf("coarsest texel still mapped: %+v", e)
	}
	if e := tbl.At(0, 0, 1); e.Mapped() {
		t.Errorf("texel served by the coarsest page still mapped: %+v", e)
	}
	if e := tbl.At(1, 1, 0); e.SlotX != 7 || e.Mip != 0 {
		t.Errorf("finer owner lost its texel: %+v", e)
	}
	if e := tbl.Resolve(3, 3, 0); e.Mapped() {
		t.Errorf("Resolve(3,3,0) = %+v, want unmapped", e)
	}
}

func TestResolve(t *testing.T) {
	tbl := mustNew(t, 4)
	if e := tbl.Resolve(3, 3, 0); e.Mapped() {
		t.Errorf("Resolve on empty table = %+v", e)
	}
	tbl.Add(0, 0, 3, 1, 2)
	tbl.Remove(0, 0, 2) // pulls root entry into mip 2 and below
	if e := tbl.Resolve(7, 7, 0); e.Mip != 3 || e.SlotX != 1 || e.SlotY != 2 {
		t.Errorf("Resolve(7,7,0) = %+v, want root", e)
	}
}

// =============================================================================
// Model Tests
// =============================================================================

// finestResident returns the entry the table should hold for (x, y, mip):
// the finest resident page among the texel's own page and its ancestors.
func finestResident(resident map[[3]int][2]int, x, y, mip, mips int) Entry {
	for m := mip; m < mips; m++ {
		if s, ok := resident[[3]int{x, y, m}]; ok {
			return Entry{SlotX: uint8(s[0]), SlotY: uint8(s[1]), Mip: uint8(m)}
		}
		x >>= 1
		y >>= 1
	}
	return Entry{Mip: Unmapped}
}

func TestTable_MatchesResidencyModel(t *testing.T) {
	const mips = 5
	tbl := mustNew(t, mips)
	rng := rand.New(rand.NewPCG(1, 2))
	resident := make(map[[3]int][2]int)

	for step := range 2000 {
		mip := rng.IntN(mips)
		w := MipWidth(mip, mips)
		key := [3]int{rng.IntN(w), rng.IntN(w), mip}

		if _, ok := resident[key]; ok && mip < mips-1 {
			delete(resident, key)
			tbl.Remove(key[0], key[1], key[2])
		} else if !ok {
			slot := [2]int{step % 200, step / 200}
			resident[key] = slot
			tbl.Add(key[0], key[1], key[2], slot[0], slot[1])
		}

		if step%97 != 0 {
			continue
		}
		for m := range mips {
			mw := MipWidth(m, mips)
			for y := range mw {
				for x := range mw {
					want := finestResident(resident, x, y, m, mips)
					got := tbl.At(x, y, m)
					if !want.Mapped() && !got.Mapped() {
						continue
					}
					if got != want {
						t.Fatalf("step %d: At(%d,%d,%d) = %+v, want %+v", step, x, y, m, got, want)
					}
				}
			}
		}
	}
}

// =============================================================================
// Dirty Tracking Tests
// =============================================================================

func TestDirty_Ranges(t *testing.T) {
	tbl := mustNew(t, 3)
	tbl.ClearDirty()
	if tbl.Dirty() {
		t.Fatal("Dirty() after ClearDirty")
	}

	tbl.Add(1, 0, 1, 2, 3)

	type rng struct{ mip, off, n int }
	var got []rng
	err := tbl.EachDirty(func(mip, off, n int, texels []byte) error {
		if len(texels) != n*TexelSize {
			t.Errorf("mip %d: %d bytes for %d texels", mip, len(texels), n)
		}
		got = append(got, rng{mip, off, n})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	// Mip 1 native texel index 1; mip 0 footprint rows y=0 and y=1, x in [2,4)
	// span texels 2..8 of the 4-wide mip.
	want := []rng{{0, 2, 6}, {1, 1, 1}}
	if len(got) != len(want) {
		t.Fatalf("EachDirty ranges = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d = %v, want %v", i, got[i], want[i])
		}
	}
}
