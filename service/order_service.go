package service

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tern/domain/book"
	"tern/infra/outbox"
	"tern/infra/sequence"
	"tern/infra/wal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TradeEvent is the published form of one fill. Each leg keeps its own
// resting price for audit.
type TradeEvent struct {
	Seq        uint64 `json:"seq"`
	BidOrderID uint64 `json:"bidOrderId"`
	AskOrderID uint64 `json:"askOrderId"`
	BidPrice   int64  `json:"bidPrice"`
	AskPrice   int64  `json:"askPrice"`
	Quantity   int64  `json:"qty"`
	Time       int64  `json:"ts"`
}

// OrderService is the only write entry point into the engine. Every
// accepted command is journaled before it touches the book; trades go
// to the durable outbox and the live hub.
type OrderService struct {
	book    *book.Book
	journal *wal.WAL
	outbox  *outbox.Outbox
	seq     *sequence.Sequencer
	trades  *Hub[TradeEvent]
	log     *zap.Logger
	clock   func() int64
}

// New wires all dependencies. The journal and outbox may be nil, which
// disables journaling and the durable outbox (used by tests); trades are
// still broadcast on the live hub.
func New(
	journal *wal.WAL,
	ob *outbox.Outbox,
	seq *sequence.Sequencer,
	log *zap.Logger,
	bookOpts ...book.Option,
) *OrderService {
	s := &OrderService{
		journal: journal,
		outbox:  ob,
		seq:     seq,
		trades:  NewHub[TradeEvent](),
		log:     log,
		clock:   nanotime,
	}
	opts := append([]book.Option{book.WithPruneHook(s.onPrune)}, bookOpts...)
	s.book = book.New(opts...)
	return s
}

// Close stops the book's prune daemon. The journal and outbox are owned
// by the caller that opened them.
func (s *OrderService) Close() {
	s.book.Close()
}

// Book exposes the underlying book for read-only queries.
func (s *OrderService) Book() *book.Book {
	return s.book
}

// Trades is the live fan-out of trade events.
func (s *OrderService) Trades() *Hub[TradeEvent] {
	return s.trades
}

// Add submits a new order. It returns the command sequence and the
// trades produced by this call.
func (s *OrderService) Add(id uint64, side book.Side, typ book.Type, price, qty int64) (uint64, []book.Trade, error) {
	seq := s.seq.Next()
	s.journalCmd(wal.RecordAdd, seq, &wal.Command{
		OrderID: id,
		Side:    uint8(side),
		Type:    uint8(typ),
		Price:   price,
		Qty:     qty,
	})

	trades, err := s.book.Add(&book.Order{
		ID:        id,
		Side:      side,
		Type:      typ,
		Price:     price,
		Remainder: qty,
	})
	if err != nil {
		ordersRejected.Inc()
		return seq, nil, err
	}

	ordersTotal.Inc()
	s.publish(trades)
	return seq, trades, nil
}

// Cancel removes one order; unknown ids are a silent no-op.
func (s *OrderService) Cancel(id uint64) uint64 {
	return s.CancelBatch([]uint64{id})
}

// CancelBatch removes a set of orders under one book lock.
func (s *OrderService) CancelBatch(ids []uint64) uint64 {
	seq := s.seq.Next()
	s.journalCmd(wal.RecordCancel, seq, &wal.Command{IDs: ids})
	s.book.CancelBatch(ids)
	cancelsTotal.Add(float64(len(ids)))
	return seq
}

// Modify replaces an order's terms; priority is lost.
func (s *OrderService) Modify(id uint64, change book.Change) (uint64, []book.Trade, error) {
	seq := s.seq.Next()
	s.journalCmd(wal.RecordModify, seq, &wal.Command{
		OrderID: id,
		Side:    uint8(change.Side),
		Price:   change.Price,
		Qty:     change.Remainder,
	})

	trades, err := s.book.Modify(id, change)
	if err != nil {
		ordersRejected.Inc()
		return seq, nil, err
	}
	s.publish(trades)
	return seq, trades, nil
}

// Depth reports up to limit aggregated levels per side.
func (s *OrderService) Depth(limit int) (bids, asks []book.LevelInfo) {
	return s.book.Depth(limit)
}

func (s *OrderService) publish(trades []book.Trade) {
	for _, tr := range trades {
		ev := TradeEvent{
			Seq:        s.seq.Next(),
			BidOrderID: tr.Bid.OrderID,
			AskOrderID: tr.Ask.OrderID,
			BidPrice:   tr.Bid.Price,
			AskPrice:   tr.Ask.Price,
			Quantity:   tr.Bid.Quantity,
			Time:       s.clock(),
		}
		if s.outbox != nil {
			payload, err := json.Marshal(ev)
			if err == nil {
				err = s.outbox.Put(ev.Seq, payload)
			}
			if err != nil {
				s.log.Error("outbox put failed", zap.Uint64("seq", ev.Seq), zap.Error(err))
			}
		}
		s.trades.Broadcast(ev)
		tradesTotal.Inc()
	}
}

// onPrune journals the daily GFD cancels so replay converges on the
// same book.
func (s *OrderService) onPrune(ids []uint64) {
	seq := s.seq.Next()
	s.journalCmd(wal.RecordCancel, seq, &wal.Command{IDs: ids})
	pruneCancels.Add(float64(len(ids)))
	s.log.Info("pruned good-for-day orders", zap.Int("count", len(ids)))
}

func nanotime() int64 {
	return time.Now().UnixNano()
}

func (s *OrderService) journalCmd(t wal.RecordType, seq uint64, cmd *wal.Command) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(wal.NewRecord(t, seq, cmd.Encode())); err != nil {
		s.log.Error("journal append failed", zap.Uint64("seq", seq), zap.Error(err))
	}
}
