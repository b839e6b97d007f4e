package pagestore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	// MaxMips is the largest supported mip count. Page coordinates travel in
	// 12-bit feedback fields, so the finest level holds at most 4096 pages
	// per side.
	MaxMips = 13

	// MaxOffset is the largest byte offset an entry can address.
	MaxOffset = 1<<48 - 1

	// MaxSize is the largest payload size an entry can describe.
	MaxSize = 1<<16 - 1

	offsetMask = MaxOffset
)

// Entry locates one page payload inside the data file.
type Entry struct {
	Size   uint16
	Offset uint64
}

// PackEntry packs an entry into its 64-bit on-disk form: size in the top
// 16 bits, offset in the low 48 bits.
func PackEntry(e Entry) int64 {
	return int64(uint64(e.Size)<<48 | e.Offset&offsetMask)
}

// UnpackEntry is the inverse of PackEntry.
func UnpackEntry(v int64) Entry {
	u := uint64(v)
	return Entry{Size: uint16(u >> 48), Offset: u & offsetMask}
}

// Empty reports whether the entry carries no data.
func (e Entry) Empty() bool { return e.Size == 0 }

// PagesPerSide returns the page grid width of mip for a texture with mips
// levels. The coarsest level is a single page.
func PagesPerSide(mip, mips int) int {
	return 1 << (mips - mip - 1)
}

// Index maps page coordinates to payload entries.
//
// An Index is immutable after construction and safe for concurrent use.
type Index struct {
	mips    int
	levels  [][]int64
	header  []byte
	entries int
}

// NewIndex creates an index with every entry empty.
func NewIndex(mips int) (*Index, error) {
	if mips < 1 || mips > MaxMips {
		return nil, fmt.Errorf("pagestore: invalid mip count %d", mips)
	}
	idx := &Index{mips: mips, levels: make([][]int64, mips)}
	for mip := range mips {
		n := PagesPerSide(mip, mips)
		idx.levels[mip] = make([]int64, n*n)
		idx.entries += n * n
	}
	return idx, nil
}

// Mips returns the number of mip levels.
func (idx *Index) Mips() int { return idx.mips }

// Entries returns the total number of entries across all levels.
func (idx *Index) Entries() int { return idx.entries }

// Header returns the codec header template stored with the index.
// The returned slice must not be modified.
func (idx *Index) Header() []byte { return idx.header }

// SetHeader replaces the codec header template.
func (idx *Index) SetHeader(h []byte) {
	idx.header = append([]byte(nil), h...)
}

// Lookup returns the entry for page (x, y) of mip.
func (idx *Index) Lookup(x, y, mip int) (Entry, error) {
	i, err := idx.slot(x, y, mip)
	if err != nil {
		return Entry{}, err
	}
	return UnpackEntry(idx.levels[mip][i]), nil
}

// Set stores the entry for page (x, y) of mip.
func (idx *Index) Set(x, y, mip int, e Entry) error {
	i, err := idx.slot(x, y, mip)
	if err != nil {
		return err
	}
	idx.levels[mip][i] = PackEntry(e)
	return nil
}

func (idx *Index) slot(x, y, mip int) (int, error) {
	if mip < 0 || mip >= idx.mips {
		return 0, fmt.Errorf("%w: mip %d of %d", ErrOutOfRange, mip, idx.mips)
	}
	n := PagesPerSide(mip, idx.mips)
	if x < 0 || y < 0 || x >= n || y >= n {
		return 0, fmt.Errorf("%w: (%d,%d) at mip %d", ErrOutOfRange, x, y, mip)
	}
	return y*n + x, nil
}

// ReadIndex decodes an index with mips levels from r.
func ReadIndex(r io.Reader, mips int) (*Index, error) {
	idx, err := NewIndex(mips)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	var buf [8]byte
	for mip := range mips {
		level := idx.levels[mip]
		for i := range level {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, fmt.Errorf("%w: mip %d entry %d: %w", ErrCorruptIndex, mip, i, err)
			}
			level[i] = int64(binary.LittleEndian.Uint64(buf[:]))
		}
	}

	if _, err := io.ReadFull(br, buf[:4]); err != nil {
		return nil, fmt.Errorf("%w: header size: %w", ErrCorruptIndex, err)
	}
	n := int32(binary.LittleEndian.Uint32(buf[:4]))
	if n < 0 || n > MaxSize {
		return nil, fmt.Errorf("%w: header size %d", ErrCorruptIndex, n)
	}
	idx.header = make([]byte, n)
	if _, err := io.ReadFull(br, idx.header); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorruptIndex, err)
	}
	return idx, nil
}

// ReadIndexFile opens path and decodes it with ReadIndex.
func ReadIndexFile(path string, mips int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open index: %w", err)
	}
	defer f.Close()
	return ReadIndex(f, mips)
}

// WriteTo encodes the index in its on-disk form.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	var buf [8]byte
	for _, level := range idx.levels {
		for _, v := range level {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			n, err := bw.Write(buf[:])
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
	}
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(idx.header)))
	n, err := bw.Write(buf[:4])
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = bw.Write(idx.header)
	written += int64(n)
	if err != nil {
		return written, err
	}
	return written, bw.Flush()
}
