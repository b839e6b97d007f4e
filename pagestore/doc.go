// Package pagestore reads and writes the on-disk page store of a virtual
// texture.
//
// A store is two files. The index file holds, for every mip level from the
// finest to the coarsest, a square grid of packed 64-bit entries followed by
// the codec header template shared by every page. The data file is the
// concatenation of page payloads; each entry addresses one payload by byte
// offset and size.
//
// Entries with a zero size mark pages that carry no data. Consumers render a
// placeholder for them instead of treating them as errors.
//
// Page data can be served by positioned reads ([ModeDirect]), from a fully
// loaded copy of the data file ([ModeMemory]), or from a read-only memory
// mapping ([ModeMmap]).
package pagestore
