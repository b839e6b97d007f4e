package pagestore

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"
)

// Writer builds a page store in memory and commits it to disk.
//
// Payloads are appended to the data blob in the order they are added.
// A page added twice points at its latest payload; the earlier bytes stay
// in the blob.
type Writer struct {
	index *Index
	data  bytes.Buffer
}

// NewWriter creates a writer for a texture with mips levels.
func NewWriter(mips int) (*Writer, error) {
	idx, err := NewIndex(mips)
	if err != nil {
		return nil, err
	}
	return &Writer{index: idx}, nil
}

// SetHeader sets the codec header template stored in the index.
func (w *Writer) SetHeader(h []byte) { w.index.SetHeader(h) }

// Add stores payload as the data of page (x, y, mip).
func (w *Writer) Add(x, y, mip int, payload []byte) error {
	if len(payload) > MaxSize {
		return fmt.Errorf("%w: %d bytes for page (%d,%d,%d)", ErrPayloadTooLarge, len(payload), x, y, mip)
	}
	off := uint64(w.data.Len())
	if off+uint64(len(payload)) > MaxOffset {
		return fmt.Errorf("%w: data blob exceeds 48-bit offsets", ErrPayloadTooLarge)
	}
	if err := w.index.Set(x, y, mip, Entry{Size: uint16(len(payload)), Offset: off}); err != nil {
		return err
	}
	w.data.Write(payload)
	return nil
}

// Index returns the index built so far.
func (w *Writer) Index() *Index { return w.index }

// Data returns the data blob built so far. The slice aliases the writer.
func (w *Writer) Data() []byte { return w.data.Bytes() }

// Store returns an in-memory store over the pages written so far.
func (w *Writer) Store() *Store {
	return NewMemoryStore(w.index, w.data.Bytes())
}

// Commit writes the index and data files. Each file is replaced
// atomically, so readers never observe a partially written file.
func (w *Writer) Commit(indexPath, dataPath string) error {
	if err := atomic.WriteFile(dataPath, bytes.NewReader(w.data.Bytes())); err != nil {
		return fmt.Errorf("pagestore: write data: %w", err)
	}

	var ib bytes.Buffer
	if _, err := w.index.WriteTo(&ib); err != nil {
		return fmt.Errorf("pagestore: encode index: %w", err)
	}
	if err := atomic.WriteFile(indexPath, &ib); err != nil {
		return fmt.Errorf("pagestore: write index: %w", err)
	}
	return nil
}
