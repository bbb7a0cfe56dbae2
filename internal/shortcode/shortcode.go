// Package shortcode mints deterministic Base62 short codes from long URLs.
package shortcode

import (
	"crypto/sha256"
	"encoding/binary"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Encode converts a number to its Base62 representation. Zero encodes to "0".
func Encode(num uint64) string {
	if num == 0 {
		return string(alphabet[0])
	}

	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = alphabet[num%62]
		num /= 62
	}

	return string(buf[i:])
}

// Decode converts a Base62 string back to a number.
func Decode(s string) uint64 {
	var num uint64
	for _, c := range s {
		num *= 62
		switch {
		case c >= '0' && c <= '9':
			num += uint64(c - '0')
		case c >= 'A' && c <= 'Z':
			num += uint64(c-'A') + 10
		case c >= 'a' && c <= 'z':
			num += uint64(c-'a') + 36
		}
	}
	return num
}

// fold compresses the first 6 bytes of a SHA-256 digest into a uint64:
// the first 4 bytes as a big-endian 32-bit value plus bytes 4..6 shifted
// left by 16. The fold is part of the wire contract and must not change
// across versions, since the same URL must keep minting the same code.
func fold(digest [sha256.Size]byte) uint64 {
	hi := uint64(binary.BigEndian.Uint32(digest[0:4]))
	lo := uint64(binary.BigEndian.Uint16(digest[4:6])) << 16
	return hi + lo
}

// Generate mints a Base62 short code for longURL that does not appear in
// existing. Identical URLs produce identical codes; collisions are resolved
// by appending the Base62 encoding of an incrementing counter.
func Generate(longURL string, existing map[string]struct{}) string {
	base := Encode(fold(sha256.Sum256([]byte(longURL))))

	code := base
	for counter := uint64(1); ; counter++ {
		if _, taken := existing[code]; !taken {
			return code
		}
		code = base + Encode(counter)
	}
}

// WithSuffix returns the code produced by the nth collision-resolution step
// for longURL; n == 0 yields the base code. Used by the shortener to retry
// after a unique-constraint violation without reloading existing codes.
func WithSuffix(longURL string, n int) string {
	base := Encode(fold(sha256.Sum256([]byte(longURL))))
	if n == 0 {
		return base
	}
	return base + Encode(uint64(n))
}
