package vtstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gogpu/vtstream/blockenc"
	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/gpu"
	"github.com/gogpu/vtstream/internal/feedback"
	"github.com/gogpu/vtstream/internal/indirection"
	"github.com/gogpu/vtstream/internal/pagecache"
	"github.com/gogpu/vtstream/internal/stream"
	"github.com/gogpu/vtstream/internal/tile"
	"github.com/gogpu/vtstream/pagestore"
)

// EmptySample marks a feedback tile that saw no virtual texture.
const EmptySample = feedback.Empty

// PackSample packs a feedback sample for page (x, y) at mip.
func PackSample(x, y, mip int) uint32 { return feedback.Pack(x, y, mip) }

// Mapping is the cache slot serving a page.
type Mapping struct {
	SlotX, SlotY int

	// Mip is the level of the page that occupies the slot. It is coarser
	// than the requested level while finer data is not resident.
	Mip int
}

// FrameStats describes one Update.
type FrameStats struct {
	// Admitted is the number of pages taken from the pipeline this frame,
	// stale ones included.
	Admitted int

	// Submitted is the number of pages handed to the pipeline.
	Submitted int

	// Active and Unique count valid samples and distinct pages visited.
	Active, Unique int

	// Promoted counts resident pages marked as recently used.
	Promoted int

	// Requested counts missing pages queued for loading; Dropped those
	// that did not fit in a per-mip list.
	Requested, Dropped int

	// Overflow counts visits that found their dedup bucket full.
	Overflow int

	// LongestChain is the deepest dedup bucket position reached.
	LongestChain int
}

// Stats counts engine events since creation.
type Stats struct {
	Frames    int64
	Submitted int64
	Admitted  int64
	Evicted   int64

	// Stale counts finished pages discarded because the cache no longer
	// knew them, typically after a Purge.
	Stale int64

	// Purged counts finished pages dropped by Purge.
	Purged int64

	QueueFull    int64
	ReadErrors   int64
	DecodeErrors int64
	UploadErrors int64

	InFlight int
	Resident int
	Pending  int
}

// Engine streams virtual texture pages into the page cache.
type Engine struct {
	id     uuid.UUID
	cfg    Config
	opts   options
	layout gpu.Layout

	store    *pagestore.Store
	uploader gpu.Uploader
	pipe     *stream.Pipeline

	// Owned by the frame goroutine.
	cache    *pagecache.Cache
	table    *indirection.Table
	analyzer *feedback.Analyzer

	placeholder []byte

	frames       atomic.Int64
	submitted    atomic.Int64
	admitted     atomic.Int64
	evicted      atomic.Int64
	stale        atomic.Int64
	purged       atomic.Int64
	uploadErrors atomic.Int64

	closed atomic.Bool
}

// New creates an engine over store. The store stays owned by the caller
// and must outlive the engine. Call Start to launch the pipeline.
func New(store *pagestore.Store, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m := store.Index().Mips(); m != cfg.Mips {
		return nil, fmt.Errorf("%w: config has %d mips, store has %d", ErrInvalidConfig, cfg.Mips, m)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var err error
	if o.codec == nil {
		if o.codec, err = codec.Lookup(cfg.Codec); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if o.encoder == nil {
		if o.encoder, err = blockenc.Lookup(cfg.Encoder); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	bpr, rows := o.encoder.Layout(tile.Size, tile.Size)
	layout := gpu.Layout{
		SlotsX:      cfg.CacheWidth,
		SlotsY:      cfg.CacheHeight,
		Mips:        cfg.Mips,
		Format:      o.encoder.Format(),
		BytesPerRow: bpr,
		Rows:        rows,
	}

	placeholder := o.placeholder
	if placeholder == nil {
		if placeholder, err = flatPage(o.encoder); err != nil {
			return nil, fmt.Errorf("%w: placeholder: %w", ErrInvalidConfig, err)
		}
	} else if len(placeholder) != layout.PageBytes() {
		return nil, fmt.Errorf("%w: placeholder of %d bytes, want %d", ErrInvalidConfig, len(placeholder), layout.PageBytes())
	}

	uploader := o.uploader
	if uploader == nil {
		uploader = gpu.NewRecorder(layout)
	}

	cache, err := pagecache.New(cfg.CacheWidth, cfg.CacheHeight, cfg.Buckets)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	table, err := indirection.New(cfg.Mips)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	analyzer, err := feedback.NewAnalyzer(feedback.Config{
		Mips:           cfg.Mips,
		RequestsPerMip: cfg.RequestsPerMip,
		DedupBuckets:   cfg.DedupBuckets,
		DedupKeys:      cfg.DedupKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	pipe, err := stream.New(store, stream.Config{
		Workers:   cfg.Workers,
		QueueSize: cfg.RingSize,
		Codec:     o.codec,
		Header:    store.Header(),
		Encoder:   o.encoder,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	pipe.SetDebug(cfg.Debug)

	e := &Engine{
		id:          uuid.New(),
		cfg:         cfg,
		opts:        o,
		layout:      layout,
		store:       store,
		uploader:    uploader,
		pipe:        pipe,
		cache:       cache,
		table:       table,
		analyzer:    analyzer,
		placeholder: placeholder,
	}
	e.logger().Debug("vtstream: engine created",
		"mips", cfg.Mips,
		"slots", cache.Capacity(),
		"codec", o.codec.Name(),
		"encoder", o.encoder.Name())
	return e, nil
}

// flatPage encodes a uniform grey page.
func flatPage(enc blockenc.Encoder) ([]byte, error) {
	texels := make([]byte, tile.Bytes)
	for i := 0; i < len(texels); i += 4 {
		texels[i+0] = 0x80
		texels[i+1] = 0x80
		texels[i+2] = 0x80
		texels[i+3] = 0xFF
	}
	dst := make([]byte, blockenc.EncodedSize(enc, tile.Size, tile.Size))
	if err := enc.Encode(dst, texels, tile.Size, tile.Size); err != nil {
		return nil, err
	}
	return dst, nil
}

// logger returns the engine logger tagged with the engine ID.
func (e *Engine) logger() *slog.Logger {
	l := e.opts.logger
	if l == nil {
		l = Logger()
	}
	return l.With("engine", e.id.String())
}

// ID returns the unique identifier attached to the engine's log records.
func (e *Engine) ID() uuid.UUID { return e.id }

// Config returns the parameters the engine was created with.
func (e *Engine) Config() Config { return e.cfg }

// Layout returns the texture layout uploads are made for. Use it to create
// the cache and indirection textures.
func (e *Engine) Layout() gpu.Layout { return e.layout }

// Uploader returns the GPU collaborator.
func (e *Engine) Uploader() gpu.Uploader { return e.uploader }

// Start launches the reader and transcode goroutines. Cancelling ctx stops
// them; the engine keeps admitting pages already finished but nothing new
// is loaded.
func (e *Engine) Start(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.pipe.Start(ctx)
	e.logger().Info("vtstream: engine started", "workers", e.cfg.Workers)
	return nil
}

// SetDebug toggles the page border and coordinate overlay for pages
// transcoded from now on.
func (e *Engine) SetDebug(on bool) { e.pipe.SetDebug(on) }

// Close stops the pipeline. Pages in flight are abandoned. Close is
// idempotent.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.pipe.Close()
	e.logger().Info("vtstream: engine closed", "in_flight", e.pipe.InFlight())
	return nil
}

// Update runs one frame: it admits finished pages, flushes the indirection
// changes and then analyzes samples to request missing pages. samples holds
// one packed sample per feedback tile, see PackSample; nil skips the
// analysis.
func (e *Engine) Update(samples []uint32) (FrameStats, error) {
	if e.closed.Load() {
		return FrameStats{}, ErrClosed
	}
	e.frames.Add(1)

	var fs FrameStats
	fs.Admitted = e.admitFinished()
	e.flushIndirection()

	if samples != nil {
		a := e.analyzer.Analyze(samples, e.cache)
		fs.Active = a.Active
		fs.Unique = a.Unique
		fs.Promoted = a.Promoted
		fs.Requested = a.Requested
		fs.Dropped = a.Dropped
		fs.Overflow = a.Overflow
		fs.LongestChain = a.LongestChain

		fs.Submitted = e.analyzer.Drain(e.budget(), e.submit)
	}
	return fs, nil
}

// admitFinished takes up to UploadsPerFrame pages back from the pipeline.
func (e *Engine) admitFinished() int {
	n := 0
	for n < e.cfg.UploadsPerFrame {
		job, ok := e.pipe.Next()
		if !ok {
			break
		}
		e.admit(job)
		e.pipe.Release(job)
		n++
	}
	return n
}

// admit gives the page of job a slot, uploads its blocks and patches the
// indirection table: the evicted page is retired before the new one is
// mapped.
func (e *Engine) admit(job *stream.Job) {
	h, ok := e.cache.Lookup(job.Page)
	if !ok {
		e.stale.Add(1)
		e.logger().Debug("vtstream: discarding stale page", "page", job.Page.String())
		return
	}

	evicted, ok := e.cache.Admit(h)
	p := e.cache.Page(h)
	e.uploadPage(p, job.Block)

	if ok {
		e.evicted.Add(1)
		id := evicted.ID
		if !e.table.Remove(id.X, id.Y, id.Mip) {
			e.table.Unmap(id.X, id.Y, id.Mip)
			e.logger().Warn("vtstream: evicted a coarsest-level page", "page", id.String())
		}
	}
	e.table.Add(p.ID.X, p.ID.Y, p.ID.Mip, p.SlotX, p.SlotY)
	e.admitted.Add(1)
}

// uploadPage uploads both channels of a page, or the placeholder when the
// page has no data.
func (e *Engine) uploadPage(p pagecache.Page, block []byte) {
	n := e.layout.PageBytes()
	for ch := range gpu.Channels {
		b := e.placeholder
		if block != nil {
			b = block[ch*n : (ch+1)*n]
		}
		if err := e.uploader.UploadCompressedBlock(gpu.TextureID(ch), p.SlotX, p.SlotY, b); err != nil {
			e.uploadErrors.Add(1)
			e.logger().Warn("vtstream: page upload failed",
				"page", p.ID.String(), "channel", ch, "err", err)
		}
	}
}

// flushIndirection uploads the changed indirection texels. On failure the
// changes stay dirty and are retried next frame.
func (e *Engine) flushIndirection() {
	if !e.table.Dirty() {
		return
	}
	if err := e.table.EachDirty(e.uploader.UploadIndirectionTexelRange); err != nil {
		e.uploadErrors.Add(1)
		e.logger().Warn("vtstream: indirection upload failed", "err", err)
		return
	}
	e.table.ClearDirty()
}

// submit hands a missing page to the pipeline. It reports false when the
// page is already known, out of range, or the read ring is full.
func (e *Engine) submit(id pagecache.PageID) bool {
	if _, ok := e.cache.Lookup(id); ok {
		return false
	}
	entry, err := e.store.Lookup(id.X, id.Y, id.Mip)
	if err != nil {
		e.logger().Debug("vtstream: ignoring request", "page", id.String(), "err", err)
		return false
	}

	h := e.cache.Insert(id)
	if !e.pipe.Submit(&stream.Job{Page: id, Entry: entry}) {
		e.cache.Remove(h)
		e.logger().Debug("vtstream: read queue full", "page", id.String())
		return false
	}
	e.submitted.Add(1)
	return true
}

// Request submits page (x, y, mip) outside the feedback loop. Requests share
// the in-flight budget with feedback: Request reports false when the page is
// already resident or pending, the budget is spent, or the read queue is
// full. Callers retry on a later frame.
func (e *Engine) Request(x, y, mip int) (bool, error) {
	if e.closed.Load() {
		return false, ErrClosed
	}
	if _, err := e.store.Lookup(x, y, mip); err != nil {
		return false, err
	}
	if e.budget() == 0 {
		return false, nil
	}
	return e.submit(pagecache.PageID{X: x, Y: y, Mip: mip}), nil
}

// Warm requests the pages of mip that are neither resident nor pending, as
// far as the in-flight budget allows, and returns how many were submitted.
// Calling it on every frame until the level is resident gives every texel a
// fallback early.
func (e *Engine) Warm(mip int) (int, error) {
	if mip < 0 || mip >= e.cfg.Mips {
		return 0, fmt.Errorf("%w: mip %d", pagestore.ErrOutOfRange, mip)
	}
	n := pagestore.PagesPerSide(mip, e.cfg.Mips)
	submitted := 0
	for y := range n {
		for x := range n {
			if e.budget() == 0 {
				return submitted, nil
			}
			ok, err := e.Request(x, y, mip)
			if err != nil {
				return submitted, err
			}
			if ok {
				submitted++
			}
		}
	}
	return submitted, nil
}

// budget returns how many more jobs may enter the pipeline.
func (e *Engine) budget() int {
	return max(e.cfg.MaxInFlight-e.pipe.InFlight(), 0)
}

// Purge forgets every cached page, unmaps the whole indirection table and
// drops finished pages waiting for admission. Pages still being read or
// transcoded finish later and are discarded as stale.
func (e *Engine) Purge() {
	e.cache.Purge()
	e.table.Reset()
	n := e.pipe.DrainUploads(e.pipe.Release)
	e.purged.Add(int64(n))
	e.logger().Info("vtstream: cache purged", "dropped", n, "in_flight", e.pipe.InFlight())
}

// Resolve returns the slot that serves page (x, y, mip) according to the
// indirection table, walking to coarser levels as the shader does. It
// reports false when no level is mapped.
func (e *Engine) Resolve(x, y, mip int) (Mapping, bool) {
	if mip < 0 || mip >= e.cfg.Mips {
		return Mapping{}, false
	}
	w := indirection.MipWidth(mip, e.cfg.Mips)
	if x < 0 || y < 0 || x >= w || y >= w {
		return Mapping{}, false
	}
	t := e.table.Resolve(x, y, mip)
	if !t.Mapped() {
		return Mapping{}, false
	}
	return Mapping{SlotX: int(t.SlotX), SlotY: int(t.SlotY), Mip: int(t.Mip)}, true
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	ps := e.pipe.Stats()
	return Stats{
		Frames:       e.frames.Load(),
		Submitted:    e.submitted.Load(),
		Admitted:     e.admitted.Load(),
		Evicted:      e.evicted.Load(),
		Stale:        e.stale.Load(),
		Purged:       e.purged.Load(),
		QueueFull:    ps.QueueFull,
		ReadErrors:   ps.ReadErrors,
		DecodeErrors: ps.DecodeErrors,
		UploadErrors: e.uploadErrors.Load(),
		InFlight:     e.pipe.InFlight(),
		Resident:     e.cache.Resident(),
		Pending:      e.cache.Pending(),
	}
}
