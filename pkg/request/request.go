// Package request defines the queries the fetch core can issue against the
// remote source. Every request has a stable fingerprint used as its cache key.
package request

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator is the delimiter between segments of a canonical request key.
const KeySeparator = "::"

// Request identifies a logical query against the remote source.
type Request interface {
	// Fingerprint is a stable identifier derived from the query parameters.
	Fingerprint() string
	// String is a human-readable identity used in logs and errors.
	String() string
}

// Paginatable is a request whose results are split into pages. Next returns
// the request for the following page and leaves the receiver untouched.
type Paginatable[R any] interface {
	Request
	Next() R
}

// fingerprint hashes the canonical key built from method and parts.
func fingerprint(method string, parts ...string) string {
	key := canonicalKey(method, parts...)
	return fmt.Sprintf("%s:%016x", method, xxhash.Sum64String(key))
}

func canonicalKey(method string, parts ...string) string {
	if len(parts) == 0 {
		return method
	}
	return method + KeySeparator + strings.Join(parts, KeySeparator)
}

func kv(name string, value any) string {
	switch v := value.(type) {
	case bool:
		return name + "=" + strconv.FormatBool(v)
	case string:
		return name + "=" + strconv.Quote(v)
	default:
		return fmt.Sprintf("%s=%v", name, v)
	}
}
