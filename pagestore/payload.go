package pagestore

import (
	"encoding/binary"
	"fmt"
)

// MetaSize is the size of the metadata prefix of every payload: seven
// little-endian int32 values.
const MetaSize = 7 * 4

// ChannelMeta describes how one encoded channel splits into its color and
// alpha planes. The codec restores these values into its header template
// before decoding.
type ChannelMeta struct {
	RGBSize     int32
	AlphaOffset int32
	AlphaSize   int32
}

// Payload is a decoded view of a page payload. Channel slices alias the
// buffer passed to ParsePayload.
type Payload struct {
	Meta     [2]ChannelMeta
	Channels [2][]byte
}

// ParsePayload splits a raw payload into its two encoded channels.
//
// Layout: [ch0Size, ch0.RGBSize, ch0.AlphaOffset, ch0.AlphaSize,
// ch1.RGBSize, ch1.AlphaOffset, ch1.AlphaSize] then channel 0 bytes then
// channel 1 bytes. Channel 1 takes whatever follows channel 0.
func ParsePayload(b []byte) (Payload, error) {
	var p Payload
	if len(b) < MetaSize {
		return p, fmt.Errorf("%w: %d bytes, need %d for metadata", ErrShortPayload, len(b), MetaSize)
	}

	field := func(i int) int32 { return int32(binary.LittleEndian.Uint32(b[i*4:])) }

	ch0 := int(field(0))
	if ch0 < 0 || MetaSize+ch0 > len(b) {
		return p, fmt.Errorf("%w: channel 0 size %d exceeds payload of %d", ErrShortPayload, ch0, len(b))
	}

	p.Meta[0] = ChannelMeta{RGBSize: field(1), AlphaOffset: field(2), AlphaSize: field(3)}
	p.Meta[1] = ChannelMeta{RGBSize: field(4), AlphaOffset: field(5), AlphaSize: field(6)}
	p.Channels[0] = b[MetaSize : MetaSize+ch0]
	p.Channels[1] = b[MetaSize+ch0:]
	return p, nil
}

// AppendPayload encodes two channels and their metadata into the payload
// layout read by ParsePayload.
func AppendPayload(dst []byte, meta [2]ChannelMeta, ch0, ch1 []byte) []byte {
	fields := [7]int32{
		int32(len(ch0)),
		meta[0].RGBSize, meta[0].AlphaOffset, meta[0].AlphaSize,
		meta[1].RGBSize, meta[1].AlphaOffset, meta[1].AlphaSize,
	}
	for _, f := range fields {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(f))
	}
	dst = append(dst, ch0...)
	return append(dst, ch1...)
}
