package pagestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Mode selects how a Store serves page data.
type Mode int

const (
	// ModeDirect issues a positioned read per page.
	ModeDirect Mode = iota

	// ModeMemory loads the whole data file at open.
	ModeMemory

	// ModeMmap maps the data file read-only. On platforms without mmap
	// support Open falls back to ModeMemory.
	ModeMmap
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeMemory:
		return "memory"
	case ModeMmap:
		return "mmap"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "direct", "":
		return ModeDirect, nil
	case "memory":
		return ModeMemory, nil
	case "mmap":
		return ModeMmap, nil
	default:
		return 0, fmt.Errorf("pagestore: unknown mode %q", s)
	}
}

// Option configures Open.
type Option func(*storeOptions)

type storeOptions struct {
	mode      Mode
	cacheSize int
}

// WithMode sets the data access mode. The default is ModeDirect.
func WithMode(m Mode) Option {
	return func(o *storeOptions) { o.mode = m }
}

// WithReadCache keeps up to n recently read raw payloads in memory.
// It only applies to ModeDirect; other modes already serve from memory.
func WithReadCache(n int) Option {
	return func(o *storeOptions) { o.cacheSize = n }
}

// Store serves page payloads described by an Index.
//
// Thread safety: ReadPage is safe for concurrent use. Close must not race
// with reads.
type Store struct {
	index *Index
	mode  Mode

	file  *os.File
	data  []byte
	unmap func() error

	cache *lru.Cache

	mu     sync.RWMutex
	closed bool
}

// Open opens the index and data files of a store.
func Open(indexPath, dataPath string, mips int, opts ...Option) (*Store, error) {
	o := storeOptions{mode: ModeDirect}
	for _, opt := range opts {
		opt(&o)
	}

	idx, err := ReadIndexFile(indexPath, mips)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open data: %w", err)
	}

	s := &Store{index: idx, mode: o.mode}

	switch o.mode {
	case ModeMmap:
		data, unmap, mode, err := mapOrRead(f, mapFile)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("pagestore: map data: %w", err)
		}
		s.data, s.unmap, s.mode = data, unmap, mode

	case ModeMemory:
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("pagestore: read data: %w", err)
		}
		s.data = data

	default:
		s.file = f
		if o.cacheSize > 0 {
			c, err := lru.New(o.cacheSize)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("pagestore: read cache: %w", err)
			}
			s.cache = c
		}
	}

	return s, nil
}

// mapOrRead maps f with mapper and falls back to reading it into memory
// where mapping is unsupported.
func mapOrRead(f *os.File, mapper func(*os.File) ([]byte, func() error, error)) ([]byte, func() error, Mode, error) {
	data, unmap, err := mapper(f)
	if errors.Is(err, errMmapUnsupported) {
		data, err = io.ReadAll(f)
		return data, nil, ModeMemory, err
	}
	return data, unmap, ModeMmap, err
}

// NewMemoryStore wraps an index and an in-memory data blob.
func NewMemoryStore(idx *Index, data []byte) *Store {
	return &Store{index: idx, mode: ModeMemory, data: data}
}

// Index returns the page index.
func (s *Store) Index() *Index { return s.index }

// Mode returns the effective data access mode.
func (s *Store) Mode() Mode { return s.mode }

// Header returns the codec header template.
func (s *Store) Header() []byte { return s.index.Header() }

// Lookup is a shortcut for Index().Lookup.
func (s *Store) Lookup(x, y, mip int) (Entry, error) {
	return s.index.Lookup(x, y, mip)
}

// ReadPage returns the raw payload addressed by e. An empty entry yields
// a nil payload and no error.
//
// In memory and mmap modes the result aliases the store and must be
// treated as read-only.
func (s *Store) ReadPage(e Entry) ([]byte, error) {
	if e.Empty() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	if s.file == nil {
		end := e.Offset + uint64(e.Size)
		if end > uint64(len(s.data)) {
			return nil, fmt.Errorf("%w: entry [%d,%d) beyond data of %d bytes", ErrOutOfRange, e.Offset, end, len(s.data))
		}
		return s.data[e.Offset:end:end], nil
	}

	if s.cache != nil {
		if v, ok := s.cache.Get(e.Offset); ok {
			if b := v.([]byte); len(b) == int(e.Size) {
				return b, nil
			}
		}
	}

	buf := make([]byte, e.Size)
	if _, err := s.file.ReadAt(buf, int64(e.Offset)); err != nil {
		return nil, fmt.Errorf("pagestore: read %d bytes at %d: %w", e.Size, e.Offset, err)
	}
	if s.cache != nil {
		s.cache.Add(e.Offset, buf)
	}
	return buf, nil
}

// Close releases the data file or mapping.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.file != nil {
		err = s.file.Close()
	}
	if s.unmap != nil {
		if uerr := s.unmap(); err == nil {
			err = uerr
		}
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	s.data = nil
	return err
}
