package wal

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Command is the journaled form of one book operation. It is encoded as
// protobuf wire format directly with protowire, so the journal stays
// readable by standard proto tooling without a generated package.
//
// Field numbers are frozen:
//
//	1 order_id  varint
//	2 side      varint
//	3 type      varint
//	4 price     sint64
//	5 qty       varint
//	6 ids       repeated varint (bulk cancel)
type Command struct {
	OrderID uint64
	Side    uint8
	Type    uint8
	Price   int64
	Qty     int64
	IDs     []uint64
}

func (c *Command) Encode() []byte {
	b := make([]byte, 0, 32)
	if c.OrderID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, c.OrderID)
	}
	if c.Side != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Side))
	}
	if c.Type != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Type))
	}
	if c.Price != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(c.Price))
	}
	if c.Qty != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.Qty))
	}
	for _, id := range c.IDs {
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, id)
	}
	return b
}

func DecodeCommand(b []byte) (*Command, error) {
	c := &Command{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("wal: bad command tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("wal: bad command field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("wal: bad command varint: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case 1:
			c.OrderID = v
		case 2:
			c.Side = uint8(v)
		case 3:
			c.Type = uint8(v)
		case 4:
			c.Price = protowire.DecodeZigZag(v)
		case 5:
			c.Qty = int64(v)
		case 6:
			c.IDs = append(c.IDs, v)
		}
	}
	return c, nil
}
