// Package obfuscate turns internal database identifiers into opaque numeric strings.
//
// An encoding is the decimal rendering of a 24 byte value: a 16 byte synthetic IV derived
// from the identifier with HMAC-SHA256, followed by the 8 byte big-endian identifier
// encrypted with ChaCha20 using the first 12 IV bytes as nonce. Decoding recomputes the IV
// and rejects any value that does not authenticate, so forged or mistyped identifiers never
// reach storage. The scheme hides enumeration order; it is not an access-control layer.
package obfuscate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

const (
	ivSize      = 16
	idSize      = 8
	encodedSize = ivSize + idSize
	// 2^192 has 58 decimal digits.
	maxDigits = 58
)

var kdfInfo = []byte("annotatron identifier obfuscation v1")

// ErrMalformedIdentifier is returned for any string that is not a valid encoding under the key.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// Obfuscator encodes and decodes identifiers. It is immutable and safe for concurrent use.
type Obfuscator struct {
	encKey []byte
	macKey []byte
}

// New derives the cipher and MAC keys from secret.
func New(secret string) (*Obfuscator, error) {
	if secret == "" {
		return nil, errors.New("obfuscation secret must not be empty")
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, kdfInfo)
	keys := make([]byte, chacha20.KeySize+sha256.Size)
	if _, err := io.ReadFull(kdf, keys); err != nil {
		return nil, fmt.Errorf("derive obfuscation keys: %w", err)
	}

	return &Obfuscator{encKey: keys[:chacha20.KeySize], macKey: keys[chacha20.KeySize:]}, nil
}

// MustNew is New for fixed secrets in tests and wiring code.
func MustNew(secret string) *Obfuscator {
	o, err := New(secret)
	if err != nil {
		panic(err)
	}
	return o
}

// Encode returns the external form of id. Equal ids always produce equal strings.
func (o *Obfuscator) Encode(id uint64) string {
	var plain [idSize]byte
	binary.BigEndian.PutUint64(plain[:], id)

	iv := o.syntheticIV(plain[:])

	buf := make([]byte, encodedSize)
	copy(buf, iv)
	o.xor(iv, buf[ivSize:], plain[:])

	return new(big.Int).SetBytes(buf).String()
}

// Decode reverses Encode.
func (o *Obfuscator) Decode(s string) (uint64, error) {
	if len(s) == 0 || len(s) > maxDigits {
		return 0, ErrMalformedIdentifier
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrMalformedIdentifier
		}
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.BitLen() > encodedSize*8 || n.String() != s {
		return 0, ErrMalformedIdentifier
	}

	buf := n.FillBytes(make([]byte, encodedSize))
	iv := buf[:ivSize]

	var plain [idSize]byte
	o.xor(iv, plain[:], buf[ivSize:])

	if !hmac.Equal(iv, o.syntheticIV(plain[:])) {
		return 0, ErrMalformedIdentifier
	}

	return binary.BigEndian.Uint64(plain[:]), nil
}

func (o *Obfuscator) syntheticIV(plain []byte) []byte {
	mac := hmac.New(sha256.New, o.macKey)
	_, _ = mac.Write(plain)
	return mac.Sum(nil)[:ivSize]
}

func (o *Obfuscator) xor(iv, dst, src []byte) {
	c, err := chacha20.NewUnauthenticatedCipher(o.encKey, iv[:chacha20.NonceSize])
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	c.XORKeyStream(dst, src)
}
