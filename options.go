package vtstream

import (
	"log/slog"

	"github.com/gogpu/vtstream/blockenc"
	"github.com/gogpu/vtstream/codec"
	"github.com/gogpu/vtstream/gpu"
)

// Option configures an Engine during creation.
//
// Example:
//
//	eng, err := vtstream.New(store, cfg,
//	    vtstream.WithUploader(uploader),
//	    vtstream.WithLogger(slog.Default()),
//	)
type Option func(*options)

// options holds optional collaborators for Engine creation.
type options struct {
	uploader    gpu.Uploader
	codec       codec.Codec
	encoder     blockenc.Encoder
	placeholder []byte
	logger      *slog.Logger
}

// WithUploader sets the GPU collaborator that receives page blocks and
// indirection texels. Without it the engine records uploads in memory with
// a [gpu.Recorder].
func WithUploader(u gpu.Uploader) Option {
	return func(o *options) {
		o.uploader = u
	}
}

// WithCodec sets the page codec, overriding Config.Codec.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithEncoder sets the block encoder, overriding Config.Encoder.
func WithEncoder(e blockenc.Encoder) Option {
	return func(o *options) {
		o.encoder = e
	}
}

// WithPlaceholder sets the encoded block uploaded for pages without data.
// It must be exactly one encoded page long. By default a flat grey page is
// used.
func WithPlaceholder(block []byte) Option {
	return func(o *options) {
		o.placeholder = block
	}
}

// WithLogger sets the logger of one engine. Engines without it use the
// package logger, see [SetLogger].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
