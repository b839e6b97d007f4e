// Package feedback turns the per-frame feedback buffer into page requests.
//
// Each feedback sample names the page a screen tile sampled: x and y in the
// low 24 bits (12 bits each) and the mip in the top 8 bits. Samples whose
// mip is out of range mark tiles that sampled nothing.
//
// The analyzer walks every sample up its mip chain, promotes resident pages,
// and collects the missing ones per mip. Draining then hands the requests
// to the pipeline coarsest mip first within an in-flight budget.
package feedback

import "github.com/gogpu/vtstream/internal/pagecache"

// Empty is a sample that matches no page.
const Empty = 0xFFFFFFFF

// Pack encodes a page into a feedback sample.
func Pack(x, y, mip int) uint32 {
	return uint32(x&0xFFF) | uint32(y&0xFFF)<<12 | uint32(mip&0xFF)<<24
}

// Unpack decodes a feedback sample.
func Unpack(s uint32) (x, y, mip int) {
	return int(s & 0xFFF), int(s>>12) & 0xFFF, int(s >> 24)
}

// ID decodes a feedback sample into a page identity.
func ID(s uint32) pagecache.PageID {
	x, y, mip := Unpack(s)
	return pagecache.PageID{X: x, Y: y, Mip: mip}
}
