package mesh

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

var testKey = DeriveKey([]byte("halo"))

func TestEncodeFrame_Layout(t *testing.T) {
	payload, _ := BrightnessCommand(3, 128)
	f, err := EncodeFrame(testKey, 0x123456, payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	data, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	n := len(payload)
	if len(data) != n+14 {
		t.Fatalf("len(frame) = %d, want %d", len(data), n+14)
	}
	if !bytes.Equal(data[0:3], []byte{0x56, 0x34, 0x12}) {
		t.Errorf("seq bytes = % x, want 56 34 12", data[0:3])
	}
	if !bytes.Equal(data[3:5], []byte{0x00, 0x80}) {
		t.Errorf("source bytes = % x, want 00 80", data[3:5])
	}
	if !bytes.Equal(data[5:5+n], f.Ciphertext) {
		t.Errorf("ciphertext bytes = % x, want % x", data[5:5+n], f.Ciphertext)
	}
	if !bytes.Equal(data[5+n:13+n], f.MAC[:]) {
		t.Errorf("mac bytes = % x, want % x", data[5+n:13+n], f.MAC)
	}
	if data[13+n] != 0xFF {
		t.Errorf("terminator = %#x, want 0xff", data[13+n])
	}
	if bytes.Equal(f.Ciphertext, payload) {
		t.Error("ciphertext equals plaintext")
	}
}

func TestFrameIV(t *testing.T) {
	iv := frameIV(0x0A0B0C, 0x8000)
	want := []byte{0x0C, 0x0B, 0x0A, 0x00, 0x00, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(iv, want) {
		t.Errorf("frameIV() = % x, want % x", iv, want)
	}
}

func TestFrameMAC_KnownVector(t *testing.T) {
	ciphertext := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	got := frameMAC(testKey, 0x123456, SourceAddress, ciphertext)
	if hex.EncodeToString(got[:]) != "f1259fd8239fc3f1" {
		t.Errorf("frameMAC() = %x, want f1259fd8239fc3f1", got)
	}
}

func TestEncodeFrame_Deterministic(t *testing.T) {
	payload := []byte{0x83, 0x80, 0x73, 0, 0x0A, 0, 0, 0, 0x80, 0, 0, 0, 0}

	a, _ := EncodeFrame(testKey, 42, payload)
	b, _ := EncodeFrame(testKey, 42, payload)
	ab, _ := a.MarshalBinary()
	bb, _ := b.MarshalBinary()
	if !bytes.Equal(ab, bb) {
		t.Errorf("EncodeFrame() not deterministic:\n% x\n% x", ab, bb)
	}
}

func TestEncodeFrame_MACChangesWithEveryInput(t *testing.T) {
	payload := []byte{0x83, 0x80, 0x73, 0, 0x0A, 0, 0, 0, 0x80, 0, 0, 0, 0}
	base, _ := EncodeFrame(testKey, 42, payload)

	for i := range payload {
		p := bytes.Clone(payload)
		p[i] ^= 0x01
		f, _ := EncodeFrame(testKey, 42, p)
		if f.MAC == base.MAC {
			t.Errorf("payload byte %d flipped, MAC unchanged", i)
		}
	}

	if f, _ := EncodeFrame(testKey, 43, payload); f.MAC == base.MAC {
		t.Error("seq changed, MAC unchanged")
	}

	for i := range KeySize {
		k := testKey
		k[i] ^= 0x01
		if f, _ := EncodeFrame(k, 42, payload); f.MAC == base.MAC {
			t.Errorf("key byte %d flipped, MAC unchanged", i)
		}
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	payload, _ := ColorTemperatureCommand(7, 2700)
	f, _ := EncodeFrame(testKey, MaxSequence, payload)
	data, _ := f.MarshalBinary()

	var parsed Frame
	if err := parsed.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if parsed.Seq != MaxSequence || parsed.Source != SourceAddress {
		t.Errorf("parsed header = (%#x, %#x), want (%#x, %#x)", parsed.Seq, parsed.Source, MaxSequence, SourceAddress)
	}
	if !parsed.Verify(testKey) {
		t.Error("Verify() = false, want true")
	}

	plain, err := parsed.Decrypt(testKey)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Errorf("Decrypt() = % x, want % x", plain, payload)
	}

	if parsed.Verify(DeriveKey([]byte("other"))) {
		t.Error("Verify() with wrong key = true, want false")
	}
	parsed.Ciphertext[0] ^= 0xFF
	if parsed.Verify(testKey) {
		t.Error("Verify() after tamper = true, want false")
	}
}

func TestEncodeFrame_InvalidSequence(t *testing.T) {
	for _, seq := range []uint32{0, MaxSequence + 1} {
		if _, err := EncodeFrame(testKey, seq, []byte{1}); !errors.Is(err, ErrInvalidSequence) {
			t.Errorf("EncodeFrame(seq=%d) error = %v, want ErrInvalidSequence", seq, err)
		}
	}
}

func TestFrame_UnmarshalInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", make([]byte, FrameOverhead-1)},
		{"no terminator", make([]byte, FrameOverhead+2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Frame
			if err := f.UnmarshalBinary(tt.data); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("UnmarshalBinary() error = %v, want ErrInvalidFrame", err)
			}
		})
	}
}

// TestEncodeFrame_KnownCiphertext pins the OFB keystream to a vector
// computed outside Go: AES-128 with the FIPS-197 key, IV 56 34 12 00 00 80
// followed by zeros.
func TestEncodeFrame_KnownCiphertext(t *testing.T) {
	var key Key
	for i := range key {
		key[i] = byte(i)
	}
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	want, _ := hex.DecodeString("6285faeb0c8e8d1d81858d3070756770f9b8cf5c")

	f, err := EncodeFrame(key, 0x123456, payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if !bytes.Equal(f.Ciphertext, want) {
		t.Errorf("Ciphertext = %x, want %x", f.Ciphertext, want)
	}

	plain, err := f.Decrypt(key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Errorf("Decrypt() = %x, want %x", plain, payload)
	}
}

func TestSplitFrame(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		wantLow  int
		wantHigh int
	}{
		{"command frame", 27, 20, 7},
		{"exactly one chunk", 20, 20, 0},
		{"short", 15, 15, 0},
		{"long ciphertext", 64, 20, 44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.size)
			for i := range data {
				data[i] = byte(i)
			}
			low, high := SplitFrame(data)
			if len(low) != tt.wantLow || len(high) != tt.wantHigh {
				t.Fatalf("SplitFrame() = (%d, %d) bytes, want (%d, %d)", len(low), len(high), tt.wantLow, tt.wantHigh)
			}
			if !bytes.Equal(append(bytes.Clone(low), high...), data) {
				t.Error("low+high does not reassemble the frame")
			}
		})
	}
}
