package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/internal/synth"
	"github.com/gogpu/vtstream/pagestore"
)

func synthCmd() *command {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	out := fs.StringP("out", "o", "atlas", "output path prefix; writes <out>.idx and <out>.dat")
	mips := fs.IntP("mips", "m", 6, "number of mip levels")
	holes := fs.Int("holes", 0, "leave every n-th finest page empty (0 keeps all)")
	codecName := fs.String("codec", "", "page codec (default: preferred registered codec)")

	return &command{
		name:  "synth",
		short: "write a synthetic page store",
		flags: fs,
		exec: func(_ context.Context, p *output, _ []string) error {
			c, err := codec.Lookup(*codecName)
			if err != nil {
				return err
			}

			var keep synth.Filter
			if *holes > 0 {
				n := 0
				keep = func(_, _, mip int) bool {
					if mip > 0 {
						return true
					}
					n++
					return n%*holes != 0
				}
			}

			w, err := synth.Build(c, *mips, keep)
			if err != nil {
				return err
			}
			if err := w.Commit(*out+".idx", *out+".dat"); err != nil {
				return err
			}

			p.Printf("wrote %s.idx and %s.dat: %d mips, %d bytes of %s pages\n",
				*out, *out, *mips, len(w.Data()), c.Name())
			return nil
		},
	}
}

// storeFlags are the flags shared by commands that open a store.
type storeFlags struct {
	index, data string
	mips        int
	mode        string
	readCache   int
}

func addStoreFlags(fs *flag.FlagSet) *storeFlags {
	s := &storeFlags{}
	fs.StringVar(&s.index, "index", "atlas.idx", "page index file")
	fs.StringVar(&s.data, "data", "atlas.dat", "page data file")
	fs.IntVarP(&s.mips, "mips", "m", 6, "number of mip levels of the store")
	fs.StringVar(&s.mode, "mode", "mmap", "data access mode: direct, memory or mmap")
	fs.IntVar(&s.readCache, "read-cache", 0, "payloads kept in memory in direct mode")
	return s
}

func (s *storeFlags) open() (*pagestore.Store, error) {
	mode, err := pagestore.ParseMode(s.mode)
	if err != nil {
		return nil, err
	}
	st, err := pagestore.Open(s.index, s.data, s.mips,
		pagestore.WithMode(mode),
		pagestore.WithReadCache(s.readCache))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
