package mesh

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
)

// Frame constants.
const (
	// SourceAddress is the mesh source address used for every frame sent by
	// the bridge.
	SourceAddress uint16 = 0x8000

	// MaxSequence is the largest sequence number that fits the 24-bit field.
	MaxSequence uint32 = 1<<24 - 1

	// ChunkSize is the BLE attribute write limit. The first ChunkSize bytes
	// of a frame go to the low characteristic, the rest to the high one.
	ChunkSize = 20

	// FrameOverhead is the number of bytes a frame adds to its payload.
	FrameOverhead = headerSize + macSize + 1

	headerSize      = 5 // seq(3) + source(2)
	macSize         = 8
	macPrefixSize   = 13
	frameTerminator = 0xFF
)

// Frame is an encrypted, authenticated mesh command.
//
// Wire layout (n = len(Ciphertext)):
//
//	Byte 0-2:         Seq (little-endian, 24 bit)
//	Byte 3-4:         Source (little-endian)
//	Byte 5..5+n:      Ciphertext (AES-128-OFB of the plaintext payload)
//	Byte 5+n..13+n:   MAC tag (reversed HMAC-SHA256, first 8 bytes)
//	Byte 13+n:        0xFF terminator
type Frame struct {
	Seq        uint32
	Source     uint16
	Ciphertext []byte
	MAC        [macSize]byte
}

// EncodeFrame encrypts payload under key and seals it with a MAC.
//
// Parameters:
//   - key: Location key from DeriveKey
//   - seq: Per-write random sequence number in [1, MaxSequence]
//   - payload: Plaintext command (see BrightnessCommand)
//
// Returns:
//   - *Frame: Sealed frame, ready for MarshalBinary
//   - error: ErrInvalidSequence if seq is out of range
func EncodeFrame(key Key, seq uint32, payload []byte) (*Frame, error) {
	if seq == 0 || seq > MaxSequence {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	ciphertext, err := ofb(key, seq, SourceAddress, payload)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Seq:        seq,
		Source:     SourceAddress,
		Ciphertext: ciphertext,
		MAC:        frameMAC(key, seq, SourceAddress, ciphertext),
	}, nil
}

// Len returns the serialised length of the frame.
func (f *Frame) Len() int {
	return len(f.Ciphertext) + FrameOverhead
}

// MarshalBinary serialises the frame to its wire layout.
func (f *Frame) MarshalBinary() ([]byte, error) {
	if f.Seq > MaxSequence {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSequence, f.Seq)
	}

	n := len(f.Ciphertext)
	buf := make([]byte, f.Len())
	putUint24(buf[0:3], f.Seq)
	binary.LittleEndian.PutUint16(buf[3:5], f.Source)
	copy(buf[headerSize:headerSize+n], f.Ciphertext)
	copy(buf[headerSize+n:headerSize+n+macSize], f.MAC[:])
	buf[len(buf)-1] = frameTerminator
	return buf, nil
}

// UnmarshalBinary parses a serialised frame. It does not verify the MAC.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < FrameOverhead {
		return fmt.Errorf("%w: too short (%d bytes, need at least %d)", ErrInvalidFrame, len(data), FrameOverhead)
	}
	if data[len(data)-1] != frameTerminator {
		return fmt.Errorf("%w: missing terminator", ErrInvalidFrame)
	}

	n := len(data) - FrameOverhead
	f.Seq = uint24(data[0:3])
	f.Source = binary.LittleEndian.Uint16(data[3:5])
	f.Ciphertext = slices.Clone(data[headerSize : headerSize+n])
	copy(f.MAC[:], data[headerSize+n:headerSize+n+macSize])
	return nil
}

// Verify reports whether the frame's MAC is valid under key.
func (f *Frame) Verify(key Key) bool {
	want := frameMAC(key, f.Seq, f.Source, f.Ciphertext)
	return hmac.Equal(want[:], f.MAC[:])
}

// Decrypt recovers the plaintext payload. OFB is its own inverse, so this
// reconstructs the IV from Seq and Source and runs the keystream again.
func (f *Frame) Decrypt(key Key) ([]byte, error) {
	return ofb(key, f.Seq, f.Source, f.Ciphertext)
}

// SplitFrame cuts a serialised frame into the low and high characteristic
// writes. high is empty, but still written, when the frame fits in a
// single chunk.
func SplitFrame(frame []byte) (low, high []byte) {
	if len(frame) <= ChunkSize {
		return frame, frame[len(frame):]
	}
	return frame[:ChunkSize], frame[ChunkSize:]
}

// frameIV builds the 16-byte OFB IV: seq LE in bytes 0-2, source LE in
// bytes 4-5, zero elsewhere.
func frameIV(seq uint32, source uint16) []byte {
	iv := make([]byte, aes.BlockSize)
	putUint24(iv[0:3], seq)
	binary.LittleEndian.PutUint16(iv[4:6], source)
	return iv
}

func ofb(key Key, seq uint32, source uint16, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	out := make([]byte, len(in))
	// The fixtures only speak OFB.
	stream := cipher.NewOFB(block, frameIV(seq, source)) //nolint:staticcheck // OFB is fixed by device firmware
	stream.XORKeyStream(out, in)
	return out, nil
}

// frameMAC computes the truncated, reversed HMAC-SHA256 tag over
// 13 header bytes (seq LE at 8-10, source LE at 11-12) followed by the
// ciphertext.
func frameMAC(key Key, seq uint32, source uint16, ciphertext []byte) [macSize]byte {
	pre := make([]byte, macPrefixSize, macPrefixSize+len(ciphertext))
	putUint24(pre[8:11], seq)
	binary.LittleEndian.PutUint16(pre[11:13], source)
	pre = append(pre, ciphertext...)

	h := hmac.New(sha256.New, key[:])
	h.Write(pre)
	sum := h.Sum(nil)
	slices.Reverse(sum)

	var tag [macSize]byte
	copy(tag[:], sum)
	return tag
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}
