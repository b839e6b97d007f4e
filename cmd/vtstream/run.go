package main

import (
	"context"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/gogpu/vtstream"
	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/internal/feedback"
	"github.com/gogpu/vtstream/internal/synth"
	"github.com/gogpu/vtstream/pagestore"
)

func runCmd() *command {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.StringP("config", "c", "", "engine config file (JSON with comments)")
	memory := fs.Bool("synthetic", false, "stream from an in-memory synthetic store instead of files")
	frames := fs.IntP("frames", "n", 600, "frames to simulate")
	frameTime := fs.Duration("frame-time", 16*time.Millisecond, "wall time per frame")
	speed := fs.Float64("speed", 0.25, "camera pan speed in finest pages per frame")
	debug := fs.Bool("debug", false, "draw page borders and coordinates into streamed pages")
	warm := fs.Bool("warm", true, "keep the coarsest mip requested")

	return &command{
		name:  "run",
		short: "stream a simulated camera pan through the engine",
		flags: fs,
		exec: func(ctx context.Context, p *output, _ []string) error {
			cfg := vtstream.DefaultConfig()
			if *configPath != "" {
				var err error
				if cfg, err = vtstream.LoadConfig(*configPath); err != nil {
					return err
				}
			}
			if fs.Changed("mips") || *configPath == "" {
				cfg.Mips = sf.mips
			}
			if *debug {
				cfg.Debug = true
			}

			var store *pagestore.Store
			if *memory {
				w, err := synth.Build(codec.TIFF{}, cfg.Mips, nil)
				if err != nil {
					return err
				}
				store = w.Store()
			} else {
				sf.mips = cfg.Mips
				var err error
				if store, err = sf.open(); err != nil {
					return err
				}
				defer store.Close()
			}

			sim := simulation{
				cfg:       cfg,
				frames:    *frames,
				frameTime: *frameTime,
				speed:     *speed,
				warm:      *warm,
			}
			return sim.run(ctx, store, p)
		},
	}
}

// simulation pans a perspective camera over the virtual texture: the top
// rows of the feedback buffer look far away and sample coarse mips, the
// bottom rows sample the finest level.
type simulation struct {
	cfg       vtstream.Config
	frames    int
	frameTime time.Duration
	speed     float64
	warm      bool
}

func (s simulation) run(ctx context.Context, store *pagestore.Store, p *output) error {
	eng, err := vtstream.New(store, s.cfg)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Start(ctx); err != nil {
		return err
	}
	w, h := s.cfg.FeedbackWidth, s.cfg.FeedbackHeight
	buf := feedback.NewDoubleBuffer(w * h)
	ticker := time.NewTicker(s.frameTime)
	defer ticker.Stop()

	start := time.Now()
	var submitted, peakInFlight int
	for frame := range s.frames {
		s.fill(buf.Back(), w, h, float64(frame)*s.speed)
		buf.Swap()

		if s.warm {
			// Warm shares the in-flight budget, so it is retried every frame.
			if _, err := eng.Warm(s.cfg.Mips - 1); err != nil {
				return err
			}
		}
		samples, _ := buf.Front()
		fs, err := eng.Update(samples)
		if err != nil {
			return err
		}
		submitted += fs.Submitted
		peakInFlight = max(peakInFlight, eng.Stats().InFlight)

		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted at frame %d: %w", frame, ctx.Err())
		case <-ticker.C:
		}
	}

	st := eng.Stats()
	p.Printf("engine %s: %d frames in %v\n", eng.ID(), st.Frames, time.Since(start).Round(time.Millisecond))
	p.Printf("  submitted %d, admitted %d, evicted %d, stale %d\n", st.Submitted, st.Admitted, st.Evicted, st.Stale)
	p.Printf("  resident %d of %d slots, pending %d, in flight %d (peak %d of %d)\n",
		st.Resident, s.cfg.CacheWidth*s.cfg.CacheHeight, st.Pending, st.InFlight, peakInFlight, s.cfg.MaxInFlight)
	p.Printf("  errors: read %d, decode %d, upload %d, queue full %d\n",
		st.ReadErrors, st.DecodeErrors, st.UploadErrors, st.QueueFull)
	return nil
}

// fill writes the samples the camera sees when panned pan finest pages to
// the right.
func (s simulation) fill(samples []uint32, w, h int, pan float64) {
	finest := pagestore.PagesPerSide(0, s.cfg.Mips)
	levels := min(s.cfg.Mips, 4)
	view := min(finest, 16)

	for ty := range h {
		// Row 0 is the horizon.
		mip := (h - 1 - ty) * levels / h
		for tx := range w {
			x := (int(pan) + tx*view/w) % finest
			y := ty * view / h
			samples[ty*w+tx] = vtstream.PackSample(x>>mip, y>>mip, mip)
		}
	}
}
