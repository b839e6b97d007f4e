// Package stream runs the asynchronous part of page streaming: reading
// page payloads from the store and transcoding them into cache texture
// blocks.
//
// The pipeline has three stages connected by fixed-capacity rings:
//
//	frame goroutine --read ring--> reader --transcode ring--> workers --upload ring--> frame goroutine
//
// The frame goroutine is the only producer of the read ring and the only
// consumer of the upload ring. One reader goroutine drains the read ring;
// a fixed pool of workers shares the transcode ring. Idle goroutines sleep
// on wake signals.
//
// A global in-flight counter limits outstanding work: it is incremented
// when a job is submitted and decremented when the frame goroutine takes
// the finished job back.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/vtstream/blockenc"
	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/internal/ring"
	"github.com/gogpu/vtstream/internal/tile"
	"github.com/gogpu/vtstream/pagestore"
)

// ErrNoCodec is returned by New without a codec or encoder.
var ErrNoCodec = errors.New("stream: codec and encoder are required")

// retryInterval is how long a stage waits before retrying a push into a
// full ring.
const retryInterval = time.Millisecond

// Reader serves page payloads. *pagestore.Store implements it.
type Reader interface {
	ReadPage(e pagestore.Entry) ([]byte, error)
}

// Config configures a Pipeline.
type Config struct {
	// Workers is the number of transcode goroutines.
	Workers int

	// QueueSize is the slot count of each ring.
	QueueSize int

	// Codec decodes page channels; Header is its template from the index.
	Codec  codec.Codec
	Header []byte

	// Encoder produces the cache texture format.
	Encoder blockenc.Encoder
}

// Stats counts pipeline events since creation.
type Stats struct {
	Submitted    int64
	QueueFull    int64
	Transcoded   int64
	Completed    int64
	ReadErrors   int64
	DecodeErrors int64
}

// Pipeline is the asynchronous read and transcode machinery.
//
// Thread safety: Submit, Next and DrainUploads must be called from a single
// goroutine. Everything else is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	reader    Reader
	pageBytes int
	blocks    *tile.Pool

	reads      *ring.SPSC[*Job]
	transcodes *ring.Guarded[*Job]
	uploads    *ring.Guarded[*Job]

	readWake      *ring.Signal
	transcodeWake *ring.Signal

	inFlight atomic.Int32
	debug    atomic.Bool

	submitted    atomic.Int64
	queueFull    atomic.Int64
	transcoded   atomic.Int64
	completed    atomic.Int64
	readErrors   atomic.Int64
	decodeErrors atomic.Int64

	// done signals goroutines to stop.
	done chan struct{}

	// wg waits for all goroutines to finish.
	wg sync.WaitGroup

	started atomic.Bool
	running atomic.Bool
}

// New creates a pipeline. Goroutines start with Start.
func New(reader Reader, cfg Config) (*Pipeline, error) {
	if cfg.Codec == nil || cfg.Encoder == nil {
		return nil, ErrNoCodec
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("stream: invalid worker count %d", cfg.Workers)
	}
	if cfg.QueueSize < 2 {
		return nil, fmt.Errorf("stream: invalid queue size %d", cfg.QueueSize)
	}

	p := &Pipeline{
		cfg:           cfg,
		reader:        reader,
		pageBytes:     blockenc.EncodedSize(cfg.Encoder, tile.Size, tile.Size),
		blocks:        tile.NewPool(cfg.QueueSize),
		reads:         ring.NewSPSC[*Job](cfg.QueueSize),
		transcodes:    ring.NewGuarded[*Job](cfg.QueueSize),
		uploads:       ring.NewGuarded[*Job](cfg.QueueSize),
		readWake:      ring.NewSignal(1),
		transcodeWake: ring.NewSignal(cfg.Workers),
		done:          make(chan struct{}),
	}
	p.running.Store(true)
	return p, nil
}

// PageBytes returns the encoded size of one channel of a page.
func (p *Pipeline) PageBytes() int { return p.pageBytes }

// Start launches the reader and the transcode workers. Cancelling ctx
// stops them like Close. Start is a no-op after the first call or after
// Close.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.running.Load() || !p.started.CompareAndSwap(false, true) {
		return
	}

	p.wg.Add(1 + p.cfg.Workers)
	go p.readLoop()
	for i := range p.cfg.Workers {
		go p.transcodeLoop(i)
	}

	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.done:
		}
	}()

	slogger().Debug("stream: pipeline started", "workers", p.cfg.Workers, "queue", p.cfg.QueueSize)
}

// Close stops all goroutines and waits for them. Jobs still queued are
// abandoned. Close is idempotent.
func (p *Pipeline) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
	slogger().Debug("stream: pipeline stopped", "in_flight", p.inFlight.Load())
}

// IsRunning reports whether the pipeline accepts jobs.
func (p *Pipeline) IsRunning() bool { return p.running.Load() }

// SetDebug toggles the debug overlay for pages transcoded from now on.
func (p *Pipeline) SetDebug(on bool) { p.debug.Store(on) }

// InFlight returns the number of submitted jobs not yet taken back.
func (p *Pipeline) InFlight() int { return int(p.inFlight.Load()) }

// Ready returns the number of finished jobs waiting for Next.
func (p *Pipeline) Ready() int { return p.uploads.Len() }

// Submit queues a job for reading. It reports false, and leaves the
// in-flight count unchanged, when the read ring is full or the pipeline is
// closed.
func (p *Pipeline) Submit(job *Job) bool {
	if !p.running.Load() {
		return false
	}
	if !p.reads.Push(job) {
		p.queueFull.Add(1)
		return false
	}
	p.inFlight.Add(1)
	p.submitted.Add(1)
	p.readWake.Notify()
	return true
}

// Next takes one finished job back and decrements the in-flight count.
func (p *Pipeline) Next() (*Job, bool) {
	job, ok := p.uploads.Pop()
	if !ok {
		return nil, false
	}
	p.inFlight.Add(-1)
	p.completed.Add(1)
	return job, true
}

// DrainUploads takes back every finished job, decrementing the in-flight
// count for each, and passes it to fn.
func (p *Pipeline) DrainUploads(fn func(*Job)) int {
	n := 0
	for {
		job, ok := p.Next()
		if !ok {
			return n
		}
		fn(job)
		n++
	}
}

// Release returns the job's block buffer for reuse. The job must not be
// used afterwards.
func (p *Pipeline) Release(job *Job) {
	if job.Block != nil {
		p.blocks.Put(job.Block)
		job.Block = nil
	}
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted:    p.submitted.Load(),
		QueueFull:    p.queueFull.Load(),
		Transcoded:   p.transcoded.Load(),
		Completed:    p.completed.Load(),
		ReadErrors:   p.readErrors.Load(),
		DecodeErrors: p.decodeErrors.Load(),
	}
}

// readLoop is the main loop of the reader goroutine.
func (p *Pipeline) readLoop() {
	defer p.wg.Done()
	for {
		for {
			job, ok := p.reads.Pop()
			if !ok {
				break
			}
			p.read(job)
			if !p.push(p.transcodes, job) {
				return
			}
			p.transcodeWake.Notify()
		}

		select {
		case <-p.done:
			return
		case <-p.readWake.C():
		}
	}
}

func (p *Pipeline) read(job *Job) {
	if job.Entry.Empty() {
		return
	}
	data, err := p.reader.ReadPage(job.Entry)
	if err != nil {
		p.readErrors.Add(1)
		job.Err = err
		job.Payload = nil
		slogger().Warn("stream: page read failed", "page", job.Page.String(), "err", err)
		return
	}
	job.Payload = data
}

// transcodeLoop is the main loop for each worker goroutine.
func (p *Pipeline) transcodeLoop(id int) {
	defer p.wg.Done()
	s := newScratch()

	for {
		for {
			job, ok := p.transcodes.Pop()
			if !ok {
				break
			}
			p.transcode(job, s)
			if !p.push(p.uploads, job) {
				return
			}
		}

		select {
		case <-p.done:
			slogger().Debug("stream: worker exiting", "worker", id)
			return
		case <-p.transcodeWake.C():
		}
	}
}

// push retries until the ring accepts job. It reports false when the
// pipeline closes first.
func (p *Pipeline) push(r *ring.Guarded[*Job], job *Job) bool {
	for !r.Push(job) {
		select {
		case <-p.done:
			return false
		case <-time.After(retryInterval):
		}
	}
	return true
}

// scratch holds the per-worker buffers of the transcode stage.
type scratch struct {
	interior []byte
	bgra     []byte
	stream   []byte
}

func newScratch() *scratch {
	return &scratch{
		interior: make([]byte, tile.InteriorBytes),
		bgra:     make([]byte, tile.Bytes),
		stream:   make([]byte, tile.Bytes),
	}
}

func (p *Pipeline) transcode(job *Job, s *scratch) {
	if job.Payload == nil {
		return
	}
	payload := job.Payload
	job.Payload = nil

	block := p.blocks.Get(2 * p.pageBytes)
	if err := p.encodePage(job, payload, block, s); err != nil {
		p.blocks.Put(block)
		p.decodeErrors.Add(1)
		job.Err = err
		slogger().Warn("stream: page transcode failed", "page", job.Page.String(), "err", err)
		return
	}
	job.Block = block
	p.transcoded.Add(1)
}

func (p *Pipeline) encodePage(job *Job, payload, block []byte, s *scratch) error {
	pl, err := pagestore.ParsePayload(payload)
	if err != nil {
		return err
	}
	debug := p.debug.Load()

	for ch := range 2 {
		if err := p.cfg.Codec.Decode(p.cfg.Header, pl.Channels[ch], pl.Meta[ch], s.interior, tile.Interior, tile.Interior); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
		tile.Bordered(s.bgra, s.interior)
		if debug && ch == 0 {
			tile.Overlay(s.bgra, job.Page.X, job.Page.Y)
		}
		tile.BlockStream(s.stream, s.bgra)

		dst := block[ch*p.pageBytes : (ch+1)*p.pageBytes]
		if err := p.cfg.Encoder.Encode(dst, s.stream, tile.Size, tile.Size); err != nil {
			return fmt.Errorf("channel %d: %w", ch, err)
		}
	}
	return nil
}
