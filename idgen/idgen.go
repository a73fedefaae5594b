// Package idgen provides pluggable ID generation.
//
// Highlights use the browser-compatible "hl_<unix-ms>_<base36>" form so that
// records exported by older clients and ids minted here sort and compare the
// same way. Restore runs use UUIDv7.
package idgen

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Random bytes at or above the largest multiple of 36 are discarded so every
// character is equally likely.
func NanoID(length int) Generator {
	const (
		alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
		limit    = 256 - 256%len(alphabet)
	)
	return func() string {
		out := make([]byte, 0, length)
		buf := make([]byte, length+length/4+1)
		for len(out) < length {
			if _, err := rand.Read(buf); err != nil {
				panic("idgen: crypto/rand failed: " + err.Error())
			}
			for _, b := range buf {
				if int(b) >= limit {
					continue
				}
				out = append(out, alphabet[int(b)%len(alphabet)])
				if len(out) == length {
					break
				}
			}
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// UnixMilli returns a Generator producing "<unix-ms>_<suffix>" where suffix
// comes from the inner generator. now may be nil.
func UnixMilli(now func() time.Time, gen Generator) Generator {
	if now == nil {
		now = time.Now
	}
	return func() string {
		return strconv.FormatInt(now().UnixMilli(), 10) + "_" + gen()
	}
}

// Highlight is the generator for highlight ids: hl_<unix-ms>_<9 base36>.
func Highlight() Generator {
	return Prefixed("hl_", UnixMilli(nil, NanoID(9)))
}
