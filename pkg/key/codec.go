package key

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Encoder writes v into buf and returns the number of bytes written, or
// zero if buf was too small (the caller is expected to retry with a
// larger buffer; this hook never allocates on the caller's behalf).
type Encoder[T any] func(v T, buf []byte) int

// Decoder allocates a fresh T from buf.
type Decoder[T any] func(buf []byte) (T, error)

// Codec bundles an Encoder and Decoder for the same type, the optional
// (de)serializer hook named in spec §4.2.
type Codec[T any] struct {
	Encode Encoder[T]
	Decode Decoder[T]
}

// BSONCodec builds a Codec backed by BSON value marshaling, grounded
// in the teacher's MarshalBson/UnmarshalBson helpers. MarshalValue/
// UnmarshalValue (rather than Marshal/Unmarshal) are used because keys
// and values are frequently bare scalars — ints, strings, floats —
// which aren't valid top-level BSON documents; a one-byte BSON type
// tag is carried alongside each encoded value so Decode knows how to
// interpret it. It round-trips anything BSON can represent: the Go
// scalar types, structs with bson tags, bson.D, and maps.
func BSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T, buf []byte) int {
			bt, data, err := bson.MarshalValue(v)
			if err != nil || len(data)+1 > len(buf) {
				return 0
			}
			buf[0] = byte(bt)
			copy(buf[1:], data)
			return len(data) + 1
		},
		Decode: func(buf []byte) (T, error) {
			var v T
			if len(buf) < 1 {
				return v, fmt.Errorf("bson codec: empty payload")
			}
			err := bson.UnmarshalValue(bson.Type(buf[0]), buf[1:], &v)
			return v, err
		},
	}
}
