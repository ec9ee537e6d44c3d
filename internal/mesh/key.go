package mesh

import (
	"crypto/sha256"
	"slices"
)

// KeySize is the length of the shared mesh key in bytes.
const KeySize = 16

// keySuffix is appended to the passphrase before hashing.
var keySuffix = []byte{0x00, 0x4D, 0x43, 0x50}

// Key is the symmetric key shared by every fixture at a location. It is used
// both as the AES-128 key and as the HMAC-SHA256 key.
type Key [KeySize]byte

// DeriveKey derives the mesh key from a location passphrase.
//
// The key is the first 16 bytes of the byte-reversed SHA-256 digest of
// passphrase || 00 4D 43 50. An empty passphrase yields a valid but weak key;
// configuration loading rejects empty passphrases before this is reached.
func DeriveKey(passphrase []byte) Key {
	h := sha256.New()
	h.Write(passphrase)
	h.Write(keySuffix)
	sum := h.Sum(nil)
	slices.Reverse(sum)

	var k Key
	copy(k[:], sum)
	return k
}
