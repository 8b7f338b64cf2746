// Package gateway implements the MarketWire client core — a single logical
// connection to the trading gateway over WebSocket. Binary frame header,
// JSON payloads, correlated request/response exchanges, server push events,
// transparent reconnection.
package gateway

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
)

// HeaderSize is the fixed binary frame header size in bytes.
const HeaderSize = 23

// ProtoVersion is the current protocol version.
const ProtoVersion = 1

// Frame type constants.
const (
	FrameConnect  uint8 = 0x01
	FrameAuthOK   uint8 = 0x02
	FrameAuthFail uint8 = 0x03
	FrameRequest  uint8 = 0x04
	FrameResponse uint8 = 0x05
	FrameEvent    uint8 = 0x06
	FramePing     uint8 = 0x07
	FrameClose    uint8 = 0x08
)

// Flag bits.
const (
	FlagCompressed uint8 = 1 << 0
)

// MaxPayloadSize is the hard reject cap for a single frame payload.
const MaxPayloadSize = 64 * 1024

// CompressionThreshold — only compress payloads above this size.
const CompressionThreshold = 1024

// Frame is a single protocol frame: 23-byte header + variable payload.
type Frame struct {
	ProtoVersion uint8
	FrameType    uint8
	Flags        uint8
	FrameID      [16]byte // ULID
	Payload      []byte
}

// EncodeFrame serializes a frame to bytes. Compresses payload if >1KB.
func EncodeFrame(f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("payload exceeds max size: %d > %d", len(f.Payload), MaxPayloadSize)
	}

	payload := f.Payload
	flags := f.Flags

	if len(payload) > CompressionThreshold && flags&FlagCompressed == 0 {
		compressed, err := compressZstd(payload)
		if err == nil && len(compressed) < len(payload) {
			payload = compressed
			flags |= FlagCompressed
		}
	}

	buf := make([]byte, HeaderSize+len(payload))

	// Header layout: version(1) | type(1) | flags(1) | payload_len(4) | frame_id(16)
	buf[0] = f.ProtoVersion
	buf[1] = f.FrameType
	buf[2] = flags
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(payload)))
	copy(buf[7:23], f.FrameID[:])

	copy(buf[HeaderSize:], payload)

	return buf, nil
}

// DecodeFrame reads a frame from an io.Reader.
func DecodeFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	f := &Frame{
		ProtoVersion: header[0],
		FrameType:    header[1],
		Flags:        header[2],
	}

	if f.ProtoVersion != ProtoVersion {
		return nil, fmt.Errorf("unsupported proto version: %d", f.ProtoVersion)
	}

	payloadLen := binary.BigEndian.Uint32(header[3:7])
	copy(f.FrameID[:], header[7:23])

	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d > %d", payloadLen, MaxPayloadSize)
	}

	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}

		if f.Flags&FlagCompressed != 0 {
			decompressed, err := decompressZstd(f.Payload)
			if err != nil {
				return nil, fmt.Errorf("decompress: %w", err)
			}
			f.Payload = decompressed
			f.Flags &^= FlagCompressed
		}
	}

	return f, nil
}

// DecodeFrameFromBytes decodes a frame from a byte slice.
func DecodeFrameFromBytes(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("data too short: %d < %d", len(data), HeaderSize)
	}

	f := &Frame{
		ProtoVersion: data[0],
		FrameType:    data[1],
		Flags:        data[2],
	}

	if f.ProtoVersion != ProtoVersion {
		return nil, fmt.Errorf("unsupported proto version: %d", f.ProtoVersion)
	}

	payloadLen := binary.BigEndian.Uint32(data[3:7])
	copy(f.FrameID[:], data[7:23])

	if payloadLen > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d > %d", payloadLen, MaxPayloadSize)
	}

	expectedLen := HeaderSize + int(payloadLen)
	if len(data) < expectedLen {
		return nil, fmt.Errorf("data truncated: %d < %d", len(data), expectedLen)
	}

	if payloadLen > 0 {
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, data[HeaderSize:expectedLen])

		if f.Flags&FlagCompressed != 0 {
			decompressed, err := decompressZstd(f.Payload)
			if err != nil {
				return nil, fmt.Errorf("decompress: %w", err)
			}
			f.Payload = decompressed
			f.Flags &^= FlagCompressed
		}
	}

	return f, nil
}

// NewFrameID generates a new ULID for use as a frame id.
func NewFrameID() [16]byte {
	id := ulid.Make()
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// NewRequestID generates a correlation id for an outbound request. ULIDs
// combine a millisecond timestamp with random entropy, so ids are
// collision-resistant for the lifetime of the process.
func NewRequestID() string {
	return ulid.Make().String()
}

// --- zstd compression ---

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
)

func initZstd() {
	zstdOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		zstdDecoder, _ = zstd.NewReader(nil)
	})
}

func compressZstd(data []byte) ([]byte, error) {
	initZstd()
	return zstdEncoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	initZstd()
	return zstdDecoder.DecodeAll(data, nil)
}
