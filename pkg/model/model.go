package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags an entity with the kind of record it is.
type Kind int

const (
	KindUnknown Kind = iota
	KindPartialLevel
	KindLevel
	KindSong
	KindCreator
)

func (k Kind) String() string {
	switch k {
	case KindPartialLevel:
		return "partial_level"
	case KindLevel:
		return "level"
	case KindSong:
		return "song"
	case KindCreator:
		return "creator"
	default:
		return "unknown"
	}
}

// Object is implemented by every entity the remote source can return.
type Object interface {
	Kind() Kind
	ID() uint64
}

// Key identifies a single entity independently of the request that produced it.
// Its string form is the cache key the entity is stored under.
type Key struct {
	Kind Kind
	ID   uint64
}

// KeyOf returns the key of an entity.
func KeyOf(o Object) Key {
	return Key{Kind: o.Kind(), ID: o.ID()}
}

func (k Key) String() string {
	return k.Kind.String() + ":" + strconv.FormatUint(k.ID, 10)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("malformed entity key %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("malformed entity id in key %q: %w", s, err)
	}
	for _, k := range []Kind{KindPartialLevel, KindLevel, KindSong, KindCreator} {
		if k.String() == kind {
			return Key{Kind: k, ID: n}, nil
		}
	}
	return Key{}, fmt.Errorf("unknown entity kind in key %q", s)
}

// Reference is a cross-reference from one entity to another, e.g. a level
// pointing at its custom song.
type Reference struct {
	Target Key
	From   Key
}

// Referencer is implemented by entities that reference other entities.
type Referencer interface {
	References() []Reference
}
