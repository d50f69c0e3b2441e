// Package wire defines the RPC messages as hand-maintained protobuf
// wire format. The messages are encoded with protowire directly, which
// keeps the surface interoperable with proto tooling without carrying a
// generated package. Field numbers are frozen; unknown fields are
// skipped on decode.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is anything the codec can put on the wire.
type Message interface {
	MarshalWire() []byte
	UnmarshalWire(b []byte) error
}

// ---- encode helpers ----

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendMsg(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.MarshalWire())
}

// ---- decode driver ----

// fieldFn consumes one known field and returns the bytes used, or 0 to
// have the driver skip the field.
type fieldFn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func unmarshalFields(b []byte, field fieldFn) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		used, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return fmt.Errorf("wire: bad field %d: %w", num, protowire.ParseError(used))
			}
		}
		b = b[used:]
	}
	return nil
}

func consumeUint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("wire: bad varint: %w", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeSint(b []byte) (int64, int, error) {
	v, n, err := consumeUint(b)
	return protowire.DecodeZigZag(v), n, err
}

func consumeMsg(b []byte, m Message) (int, error) {
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("wire: bad message field: %w", protowire.ParseError(n))
	}
	return n, m.UnmarshalWire(sub)
}
