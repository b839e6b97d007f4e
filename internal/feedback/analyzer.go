package feedback

import (
	"fmt"

	"github.com/gogpu/vtstream/internal/pagecache"
)

// Config sizes an Analyzer.
type Config struct {
	// Mips is the number of mip levels of the virtual texture.
	Mips int

	// RequestsPerMip caps the missing pages collected per mip and frame.
	RequestsPerMip int

	// DedupBuckets and DedupKeys size the per-frame visited set.
	DedupBuckets int
	DedupKeys    int
}

// Stats describes one analysis pass.
type Stats struct {
	// Active counts samples that named a page.
	Active int
	// Unique counts distinct pages visited, ancestors included.
	Unique int
	// Promoted counts resident pages moved to the LRU head.
	Promoted int
	// Requested counts missing pages queued for loading.
	Requested int
	// Dropped counts missing pages that did not fit their mip's list.
	Dropped int
	// Overflow counts visits that found their dedup bucket full.
	Overflow int
	// LongestChain is the deepest dedup bucket position reached.
	LongestChain int
}

// Analyzer collects page requests from feedback samples.
//
// Analyzer is not thread-safe; it runs on the frame goroutine together with
// the cache it inspects.
type Analyzer struct {
	mips     int
	perMip   int
	visited  *dedup
	requests [][]pagecache.PageID
	stats    Stats
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.Mips < 1 || cfg.Mips > 0xFF {
		return nil, fmt.Errorf("feedback: invalid mip count %d", cfg.Mips)
	}
	if cfg.RequestsPerMip < 1 || cfg.DedupBuckets < 1 || cfg.DedupKeys < 1 || cfg.DedupKeys > 0xFF {
		return nil, fmt.Errorf("feedback: invalid sizes %+v", cfg)
	}
	a := &Analyzer{
		mips:     cfg.Mips,
		perMip:   cfg.RequestsPerMip,
		visited:  newDedup(cfg.DedupBuckets, cfg.DedupKeys),
		requests: make([][]pagecache.PageID, cfg.Mips),
	}
	for mip := range a.requests {
		a.requests[mip] = make([]pagecache.PageID, 0, cfg.RequestsPerMip)
	}
	return a, nil
}

// Analyze scans one frame of samples. Previous requests are discarded.
//
// For every sample the page and each of its ancestors is visited once per
// frame: resident pages are promoted, pages unknown to the cache are queued
// on their mip's list, and pending pages are left alone. The walk stops at
// the first page already visited this frame, since its ancestors were
// handled with it.
func (a *Analyzer) Analyze(samples []uint32, cache *pagecache.Cache) Stats {
	a.visited.reset()
	for mip := range a.requests {
		a.requests[mip] = a.requests[mip][:0]
	}
	a.stats = Stats{}

	for _, s := range samples {
		id := ID(s)
		if id.Mip >= a.mips {
			continue
		}
		a.stats.Active++

		for id.Mip < a.mips {
			seen, pos, overflow := a.visited.visit(id.Key())
			if seen {
				break
			}
			if overflow {
				a.stats.Overflow++
			}
			a.stats.LongestChain = max(a.stats.LongestChain, pos)
			a.stats.Unique++

			if h, ok := cache.Lookup(id); ok {
				if cache.Page(h).Resident() {
					cache.Promote(h)
					a.stats.Promoted++
				}
			} else if len(a.requests[id.Mip]) < a.perMip {
				a.requests[id.Mip] = append(a.requests[id.Mip], id)
				a.stats.Requested++
			} else {
				a.stats.Dropped++
			}

			id = id.Parent()
		}
	}
	return a.stats
}

// Requests returns the pages queued for mip by the last Analyze.
// The slice aliases the analyzer.
func (a *Analyzer) Requests(mip int) []pagecache.PageID { return a.requests[mip] }

// Pending returns the number of queued requests across all mips.
func (a *Analyzer) Pending() int {
	n := 0
	for _, r := range a.requests {
		n += len(r)
	}
	return n
}

// Stats returns the statistics of the last Analyze.
func (a *Analyzer) Stats() Stats { return a.stats }

// Drain hands queued requests to produce, coarsest mip first and in list
// order within a mip, until budget requests were accepted. produce reports
// whether it accepted the page; rejected pages do not use budget. Drain
// returns the number of accepted pages. Requests left over are discarded.
func (a *Analyzer) Drain(budget int, produce func(pagecache.PageID) bool) int {
	accepted := 0
	for mip := a.mips - 1; mip >= 0 && accepted < budget; mip-- {
		for _, id := range a.requests[mip] {
			if accepted >= budget {
				break
			}
			if produce(id) {
				accepted++
			}
		}
	}
	for mip := range a.requests {
		a.requests[mip] = a.requests[mip][:0]
	}
	return accepted
}
