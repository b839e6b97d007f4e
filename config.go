package vtstream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/gogpu/vtstream/internal/indirection"
	"github.com/gogpu/vtstream/pagestore"
)

// Config holds the engine parameters. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Mips is the number of mip levels of the virtual texture. It must
	// match the page store. The finest level is 1<<(Mips-1) pages wide.
	Mips int `json:"mips"`

	// CacheWidth and CacheHeight are the physical cache size in slots.
	CacheWidth  int `json:"cache_width"`
	CacheHeight int `json:"cache_height"`

	// Buckets is the hash bucket count of the page cache, rounded up to a
	// power of two.
	Buckets int `json:"buckets"`

	// Workers is the number of transcode goroutines.
	Workers int `json:"workers"`

	// MaxInFlight bounds the pages submitted but not yet admitted.
	MaxInFlight int `json:"max_in_flight"`

	// UploadsPerFrame bounds the pages admitted by one Update.
	UploadsPerFrame int `json:"uploads_per_frame"`

	// RingSize is the slot count of each pipeline ring.
	RingSize int `json:"ring_size"`

	// FeedbackWidth and FeedbackHeight are the feedback buffer size in
	// samples.
	FeedbackWidth  int `json:"feedback_width"`
	FeedbackHeight int `json:"feedback_height"`

	// RequestsPerMip bounds the pages requested per mip and frame.
	RequestsPerMip int `json:"requests_per_mip"`

	// DedupBuckets and DedupKeys size the per-frame table of visited
	// pages.
	DedupBuckets int `json:"dedup_buckets"`
	DedupKeys    int `json:"dedup_keys"`

	// Codec and Encoder name registered collaborators. Empty names select
	// the preferred registered one.
	Codec   string `json:"codec,omitempty"`
	Encoder string `json:"encoder,omitempty"`

	// Debug draws page borders and coordinates into streamed pages.
	Debug bool `json:"debug,omitempty"`
}

// DefaultConfig returns the default parameters: an 11 level texture, a
// 64×64 slot cache, 3 workers and 32 pages in flight.
func DefaultConfig() Config {
	return Config{
		Mips:            11,
		CacheWidth:      64,
		CacheHeight:     64,
		Buckets:         4096,
		Workers:         3,
		MaxInFlight:     32,
		UploadsPerFrame: 16,
		RingSize:        4096,
		FeedbackWidth:   160,
		FeedbackHeight:  120,
		RequestsPerMip:  256,
		DedupBuckets:    4096,
		DedupKeys:       16,
	}
}

// Validate reports the first unusable parameter.
func (c Config) Validate() error {
	switch {
	case c.Mips < 1 || c.Mips > pagestore.MaxMips:
		return fmt.Errorf("%w: mips %d not in [1,%d]", ErrInvalidConfig, c.Mips, pagestore.MaxMips)
	case c.CacheWidth < 1 || c.CacheWidth > indirection.MaxSlot+1,
		c.CacheHeight < 1 || c.CacheHeight > indirection.MaxSlot+1:
		return fmt.Errorf("%w: cache %dx%d slots, each side must be in [1,%d]",
			ErrInvalidConfig, c.CacheWidth, c.CacheHeight, indirection.MaxSlot+1)
	case c.Buckets < 1:
		return fmt.Errorf("%w: buckets %d", ErrInvalidConfig, c.Buckets)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Workers)
	case c.MaxInFlight < 1:
		return fmt.Errorf("%w: max_in_flight %d", ErrInvalidConfig, c.MaxInFlight)
	case c.UploadsPerFrame < 1:
		return fmt.Errorf("%w: uploads_per_frame %d", ErrInvalidConfig, c.UploadsPerFrame)
	case c.RingSize < 2:
		return fmt.Errorf("%w: ring_size %d", ErrInvalidConfig, c.RingSize)
	case c.FeedbackWidth < 1 || c.FeedbackHeight < 1:
		return fmt.Errorf("%w: feedback %dx%d", ErrInvalidConfig, c.FeedbackWidth, c.FeedbackHeight)
	case c.RequestsPerMip < 1:
		return fmt.Errorf("%w: requests_per_mip %d", ErrInvalidConfig, c.RequestsPerMip)
	case c.DedupBuckets < 1 || c.DedupKeys < 1 || c.DedupKeys > 0xFF:
		return fmt.Errorf("%w: dedup %d buckets x %d keys", ErrInvalidConfig, c.DedupBuckets, c.DedupKeys)
	}
	return nil
}

// ParseConfig reads a JSON config that may contain comments and trailing
// commas. Fields not present keep their DefaultConfig value. Unknown fields
// are rejected.
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and validates a config file, see ParseConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("vtstream: read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
