package wire

import "google.golang.org/protobuf/encoding/protowire"

// Side and type codes are the book's wire-stable values:
// side 0=UNKNOWN 1=BUY 2=SELL; type 0=UNKNOWN 1=GTC 2=FAK 3=FOK 4=GFD 5=MAR.

type AddRequest struct {
	Id    uint64
	Side  uint32
	Type  uint32
	Price int64
	Qty   int64
}

func (m *AddRequest) MarshalWire() []byte {
	var b []byte
	b = appendUint(b, 1, m.Id)
	b = appendUint(b, 2, uint64(m.Side))
	b = appendUint(b, 3, uint64(m.Type))
	b = appendSint(b, 4, m.Price)
	b = appendUint(b, 5, uint64(m.Qty))
	return b
}

func (m *AddRequest) UnmarshalWire(b []byte) error {
	*m = AddRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		switch num {
		case 1:
			v, n, err := consumeUint(b)
			m.Id = v
			return n, err
		case 2:
			v, n, err := consumeUint(b)
			m.Side = uint32(v)
			return n, err
		case 3:
			v, n, err := consumeUint(b)
			m.Type = uint32(v)
			return n, err
		case 4:
			v, n, err := consumeSint(b)
			m.Price = v
			return n, err
		case 5:
			v, n, err := consumeUint(b)
			m.Qty = int64(v)
			return n, err
		}
		return 0, nil
	})
}

type Trade struct {
	BidId    uint64
	AskId    uint64
	BidPrice int64
	AskPrice int64
	Qty      int64
}

func (m *Trade) MarshalWire() []byte {
	var b []byte
	b = appendUint(b, 1, m.BidId)
	b = appendUint(b, 2, m.AskId)
	b = appendSint(b, 3, m.BidPrice)
	b = appendSint(b, 4, m.AskPrice)
	b = appendUint(b, 5, uint64(m.Qty))
	return b
}

func (m *Trade) UnmarshalWire(b []byte) error {
	*m = Trade{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		switch num {
		case 1:
			v, n, err := consumeUint(b)
			m.BidId = v
			return n, err
		case 2:
			v, n, err := consumeUint(b)
			m.AskId = v
			return n, err
		case 3:
			v, n, err := consumeSint(b)
			m.BidPrice = v
			return n, err
		case 4:
			v, n, err := consumeSint(b)
			m.AskPrice = v
			return n, err
		case 5:
			v, n, err := consumeUint(b)
			m.Qty = int64(v)
			return n, err
		}
		return 0, nil
	})
}

type AddResponse struct {
	Seq    uint64
	Trades []*Trade
}

func (m *AddResponse) MarshalWire() []byte {
	var b []byte
	b = appendUint(b, 1, m.Seq)
	for _, tr := range m.Trades {
		b = appendMsg(b, 2, tr)
	}
	return b
}

func (m *AddResponse) UnmarshalWire(b []byte) error {
	*m = AddResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n, err := consumeUint(b)
			m.Seq = v
			return n, err
		case num == 2 && typ == protowire.BytesType:
			tr := &Trade{}
			n, err := consumeMsg(b, tr)
			if err == nil {
				m.Trades = append(m.Trades, tr)
			}
			return n, err
		}
		return 0, nil
	})
}

type CancelRequest struct {
	Ids []uint64
}

func (m *CancelRequest) MarshalWire() []byte {
	var b []byte
	for _, id := range m.Ids {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, id)
	}
	return b
}

func (m *CancelRequest) UnmarshalWire(b []byte) error {
	*m = CancelRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeUint(b)
			if err == nil {
				m.Ids = append(m.Ids, v)
			}
			return n, err
		}
		return 0, nil
	})
}

type CancelResponse struct {
	Seq uint64
}

func (m *CancelResponse) MarshalWire() []byte {
	return appendUint(nil, 1, m.Seq)
}

func (m *CancelResponse) UnmarshalWire(b []byte) error {
	*m = CancelResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeUint(b)
			m.Seq = v
			return n, err
		}
		return 0, nil
	})
}

type ModifyRequest struct {
	Id    uint64
	Side  uint32
	Price int64
	Qty   int64
}

func (m *ModifyRequest) MarshalWire() []byte {
	var b []byte
	b = appendUint(b, 1, m.Id)
	b = appendUint(b, 2, uint64(m.Side))
	b = appendSint(b, 3, m.Price)
	b = appendUint(b, 4, uint64(m.Qty))
	return b
}

func (m *ModifyRequest) UnmarshalWire(b []byte) error {
	*m = ModifyRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		switch num {
		case 1:
			v, n, err := consumeUint(b)
			m.Id = v
			return n, err
		case 2:
			v, n, err := consumeUint(b)
			m.Side = uint32(v)
			return n, err
		case 3:
			v, n, err := consumeSint(b)
			m.Price = v
			return n, err
		case 4:
			v, n, err := consumeUint(b)
			m.Qty = int64(v)
			return n, err
		}
		return 0, nil
	})
}

type DepthRequest struct {
	Limit uint32
}

func (m *DepthRequest) MarshalWire() []byte {
	return appendUint(nil, 1, uint64(m.Limit))
}

func (m *DepthRequest) UnmarshalWire(b []byte) error {
	*m = DepthRequest{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n, err := consumeUint(b)
			m.Limit = uint32(v)
			return n, err
		}
		return 0, nil
	})
}

type Level struct {
	Price int64
	Count uint32
	Qty   int64
}

func (m *Level) MarshalWire() []byte {
	var b []byte
	b = appendSint(b, 1, m.Price)
	b = appendUint(b, 2, uint64(m.Count))
	b = appendUint(b, 3, uint64(m.Qty))
	return b
}

func (m *Level) UnmarshalWire(b []byte) error {
	*m = Level{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, nil
		}
		switch num {
		case 1:
			v, n, err := consumeSint(b)
			m.Price = v
			return n, err
		case 2:
			v, n, err := consumeUint(b)
			m.Count = uint32(v)
			return n, err
		case 3:
			v, n, err := consumeUint(b)
			m.Qty = int64(v)
			return n, err
		}
		return 0, nil
	})
}

type DepthResponse struct {
	Bids []*Level
	Asks []*Level
}

func (m *DepthResponse) MarshalWire() []byte {
	var b []byte
	for _, lv := range m.Bids {
		b = appendMsg(b, 1, lv)
	}
	for _, lv := range m.Asks {
		b = appendMsg(b, 2, lv)
	}
	return b
}

func (m *DepthResponse) UnmarshalWire(b []byte) error {
	*m = DepthResponse{}
	return unmarshalFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		switch num {
		case 1, 2:
			lv := &Level{}
			n, err := consumeMsg(b, lv)
			if err != nil {
				return n, err
			}
			if num == 1 {
				m.Bids = append(m.Bids, lv)
			} else {
				m.Asks = append(m.Asks, lv)
			}
			return n, nil
		}
		return 0, nil
	})
}
