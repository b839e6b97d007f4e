// Package vtstream streams the pages of a very large virtual texture into a
// fixed-size GPU page cache.
//
// # Overview
//
// A virtual texture of up to 131072×131072 texels is stored on disk as
// 128×128 texel pages for every mip level. Only the pages the camera
// actually sees, at the mip it needs, are loaded into a physical cache
// texture of W×H page slots. An indirection texture with one texel per page
// and mip tells the shader which slot serves a page, falling back to the
// nearest coarser page while finer data is still in flight.
//
// # Quick Start
//
//	store, err := pagestore.Open("atlas.idx", "atlas.dat", 11, pagestore.WithMode(pagestore.ModeMmap))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	eng, err := vtstream.New(store, vtstream.DefaultConfig(), vtstream.WithUploader(uploader))
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//	eng.Start(ctx)
//
//	for frame := range frames {
//	    // samples: one packed (x, y, mip) per feedback tile, read back
//	    // from the previous frame's feedback pass.
//	    if _, err := eng.Update(frame.Samples); err != nil {
//	        return err
//	    }
//	}
//
// # Architecture
//
// Each Update runs on the caller's goroutine and does two things. It admits
// up to UploadsPerFrame finished pages: each one takes a free cache slot or
// the slot of the least recently used page, its blocks are uploaded, and
// the indirection table is patched and flushed. Then it analyzes the
// feedback samples, promotes the resident pages they hit and submits the
// missing ones, coarsest mip first, within the in-flight budget.
//
// Submitted pages are read from the [pagestore.Store] by one reader
// goroutine and transcoded by a pool of workers: both channels are decoded
// with a [codec.Codec], rebuilt into bordered 128×128 tiles and compressed
// with a [blockenc.Encoder]. Uploads go through a [gpu.Uploader].
//
// # Thread Safety
//
// Update, Request, Warm, Purge, Resolve and Stats must be called from one
// goroutine. SetDebug and Close are safe for concurrent use.
//
// # Logging
//
// vtstream is silent by default. See [SetLogger].
package vtstream
