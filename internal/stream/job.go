package stream

import (
	"github.com/gogpu/vtstream/internal/pagecache"
	"github.com/gogpu/vtstream/pagestore"
)

// Job carries one page through the pipeline. Each stage owns the job while
// it holds it and mutates it in place: the read stage fills Payload, the
// transcode stage replaces Payload with Block.
type Job struct {
	// Page identifies the requested page.
	Page pagecache.PageID

	// Entry locates the page payload in the store.
	Entry pagestore.Entry

	// Payload is the raw page payload after the read stage. Nil when the
	// page has no data or the read failed.
	Payload []byte

	// Block holds the encoded page, channel 0 followed by channel 1. Nil
	// when there is nothing to show; the consumer substitutes a placeholder.
	Block []byte

	// Err records the first failure of the read or transcode stage.
	Err error
}

// NoData reports whether the consumer must upload a placeholder.
func (j *Job) NoData() bool { return j.Block == nil }
