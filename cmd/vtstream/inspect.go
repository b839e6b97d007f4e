package main

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/gogpu/vtstream/pagestore"
)

// mipSummary aggregates the pages of one mip level.
type mipSummary struct {
	pages, filled, corrupt int
	bytes                  int64
	smallest, largest      int
}

func inspectCmd() *command {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	verify := fs.Bool("verify", false, "read and parse every payload")

	return &command{
		name:  "inspect",
		short: "print per-mip statistics of a store",
		flags: fs,
		exec: func(_ context.Context, p *output, _ []string) error {
			st, err := sf.open()
			if err != nil {
				return err
			}
			defer st.Close()

			idx := st.Index()
			p.Printf("%s: %d mips, %d entries, %d byte codec header, %s mode\n",
				sf.index, idx.Mips(), idx.Entries(), len(idx.Header()), st.Mode())

			var total mipSummary
			for mip := range idx.Mips() {
				s, err := summarize(st, mip, *verify)
				if err != nil {
					return err
				}
				p.Printf("  mip %2d: %7d pages, %7d with data, %13d bytes", mip, s.pages, s.filled, s.bytes)
				if s.filled > 0 {
					p.Printf(", %d..%d per page", s.smallest, s.largest)
				}
				if *verify {
					p.Printf(", %d corrupt", s.corrupt)
				}
				p.Printf("\n")
				total.pages += s.pages
				total.filled += s.filled
				total.corrupt += s.corrupt
				total.bytes += s.bytes
			}
			p.Printf("  total : %7d pages, %7d with data, %13d bytes\n", total.pages, total.filled, total.bytes)
			if *verify && total.corrupt > 0 {
				p.Printf("%d corrupt payloads\n", total.corrupt)
			}
			return nil
		},
	}
}

func summarize(st *pagestore.Store, mip int, verify bool) (mipSummary, error) {
	n := pagestore.PagesPerSide(mip, st.Index().Mips())
	s := mipSummary{pages: n * n}
	for y := range n {
		for x := range n {
			e, err := st.Lookup(x, y, mip)
			if err != nil {
				return s, err
			}
			if e.Empty() {
				continue
			}
			size := int(e.Size)
			if s.filled == 0 || size < s.smallest {
				s.smallest = size
			}
			s.largest = max(s.largest, size)
			s.filled++
			s.bytes += int64(size)

			if verify {
				data, err := st.ReadPage(e)
				if err == nil {
					_, err = pagestore.ParsePayload(data)
				}
				if err != nil {
					s.corrupt++
				}
			}
		}
	}
	return s, nil
}
