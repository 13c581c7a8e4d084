// Package codec turns cached values into bytes and back.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes values for storage in a byte-oriented backend.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// JSON encodes with encoding/json. Useful when entries should be readable in
// the backend console.
type JSON struct{}

func (JSON) Name() string                    { return "json" }
func (JSON) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// Msgpack is the default codec. The zero value is ready to use.
type Msgpack struct{}

func (Msgpack) Name() string                    { return "msgpack" }
func (Msgpack) Marshal(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (Msgpack) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }

// CBOR encodes with fxamacker/cbor. Construct with NewCBOR.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBOR builds a CBOR codec. With deterministic set the core deterministic
// encoding of RFC 8949 is used, so equal values encode to equal bytes.
func NewCBOR(deterministic bool) (*CBOR, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encode mode: %w", err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decode mode: %w", err)
	}
	return &CBOR{enc: em, dec: dm}, nil
}

func (c *CBOR) Name() string                    { return "cbor" }
func (c *CBOR) Marshal(v any) ([]byte, error)   { return c.enc.Marshal(v) }
func (c *CBOR) Unmarshal(b []byte, v any) error { return c.dec.Unmarshal(b, v) }

// ByName returns the codec registered under name. An empty name selects Msgpack.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return Msgpack{}, nil
	case "json":
		return JSON{}, nil
	case "cbor":
		return NewCBOR(true)
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
