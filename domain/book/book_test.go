package book

import (
	"testing"
	"time"
)

func newTestBook(t *testing.T, opts ...Option) *Book {
	t.Helper()
	b := New(opts...)
	t.Cleanup(b.Close)
	return b
}

func mustAdd(t *testing.T, b *Book, o *Order) []Trade {
	t.Helper()
	trades, err := b.Add(o)
	if err != nil {
		t.Fatalf("Add(%d): %v", o.ID, err)
	}
	checkInvariants(t, b)
	return trades
}

// checkInvariants verifies the cross-structure invariants that must hold
// after every public operation.
func checkInvariants(t *testing.T, b *Book) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	resting := 0
	for _, side := range []*bookSide{b.bids, b.asks} {
		side.levels.Walk(func(price int64, lvl *level) bool {
			if lvl.empty() {
				t.Errorf("empty level at %d still indexed", price)
			}
			count, qty := 0, int64(0)
			for o := lvl.head; o != nil; o = o.next {
				if o.Remainder <= 0 {
					t.Errorf("order %d rests with remainder %d", o.ID, o.Remainder)
				}
				if e, ok := b.orders[o.ID]; !ok || e.order != o {
					t.Errorf("order %d queued but not in directory", o.ID)
				}
				count++
				qty += o.Remainder
				resting++
			}
			row, ok := side.depth.rows.Get(price)
			if !ok {
				t.Errorf("no depth row for level %d", price)
			} else if row.count != count || row.qty != qty {
				t.Errorf("depth row %d = (%d,%d), level holds (%d,%d)",
					price, row.count, row.qty, count, qty)
			}
			return true
		})
		if side.depth.rows.Size() != side.levels.Size() {
			t.Errorf("depth has %d rows, side has %d levels",
				side.depth.rows.Size(), side.levels.Size())
		}
	}
	if resting != len(b.orders) {
		t.Errorf("directory has %d entries, queues hold %d orders", len(b.orders), resting)
	}

	bid, _, okBid := b.bids.levels.Best()
	ask, _, okAsk := b.asks.levels.Best()
	if okBid && okAsk && bid >= ask {
		t.Errorf("book still crossed: bid %d >= ask %d", bid, ask)
	}
}

func TestSimpleCross(t *testing.T) {
	b := newTestBook(t)

	trades := mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 10})
	if len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}

	trades = mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Sell, Price: 100, Remainder: 10})
	if len(trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Bid.OrderID != 1 || tr.Ask.OrderID != 2 || tr.Bid.Price != 100 || tr.Ask.Price != 100 || tr.Bid.Quantity != 10 {
		t.Errorf("unexpected trade %+v", tr)
	}
	if b.Len() != 0 {
		t.Error("book should be empty after the cross")
	}
}

func TestPartialFillKeepsPriority(t *testing.T) {
	b := newTestBook(t)

	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 10})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Buy, Price: 100, Remainder: 5})

	trades := mustAdd(t, b, &Order{ID: 3, Type: GTC, Side: Sell, Price: 100, Remainder: 7})
	if len(trades) != 1 || trades[0].Bid.OrderID != 1 || trades[0].Bid.Quantity != 7 {
		t.Fatalf("expected order 1 filled for 7, got %+v", trades)
	}

	lvl, ok := b.bids.levels.Get(100)
	if !ok {
		t.Fatal("bid level 100 missing")
	}
	if lvl.head.ID != 1 || lvl.head.Remainder != 3 {
		t.Errorf("head should be order 1 with remainder 3, got %d/%d", lvl.head.ID, lvl.head.Remainder)
	}
	if lvl.head.next.ID != 2 || lvl.head.next.Remainder != 5 {
		t.Errorf("order 2 should follow with remainder 5")
	}
	if _, _, ok := b.asks.levels.Best(); ok {
		t.Error("asks should be empty")
	}
}

func TestFAKDoesNotRest(t *testing.T) {
	b := newTestBook(t)

	trades := mustAdd(t, b, &Order{ID: 1, Type: FAK, Side: Buy, Price: 100, Remainder: 10})
	if len(trades) != 0 || b.Len() != 0 {
		t.Fatal("unmarketable FAK must be dropped without resting")
	}

	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Sell, Price: 100, Remainder: 4})
	trades = mustAdd(t, b, &Order{ID: 3, Type: FAK, Side: Buy, Price: 100, Remainder: 10})
	if len(trades) != 1 || trades[0].Bid.OrderID != 3 || trades[0].Bid.Quantity != 4 {
		t.Fatalf("expected FAK to take the 4 available, got %+v", trades)
	}
	if b.Len() != 0 {
		t.Error("FAK remainder must be swept, book should be empty")
	}
}

func TestFOKAllOrNothing(t *testing.T) {
	b := newTestBook(t)

	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Sell, Price: 100, Remainder: 3})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Sell, Price: 101, Remainder: 5})

	trades := mustAdd(t, b, &Order{ID: 3, Type: FOK, Side: Buy, Price: 101, Remainder: 10})
	if len(trades) != 0 {
		t.Fatalf("only 8 available at or under 101; FOK must not admit: %+v", trades)
	}
	if b.Len() != 2 {
		t.Error("rejected FOK must leave the book untouched")
	}

	trades = mustAdd(t, b, &Order{ID: 4, Type: FOK, Side: Buy, Price: 101, Remainder: 8})
	if len(trades) != 2 {
		t.Fatalf("expected two fills, got %+v", trades)
	}
	if trades[0].Ask.Price != 100 || trades[0].Ask.Quantity != 3 {
		t.Errorf("first fill should be 3@100, got %+v", trades[0])
	}
	if trades[1].Ask.Price != 101 || trades[1].Ask.Quantity != 5 {
		t.Errorf("second fill should be 5@101, got %+v", trades[1])
	}
	if b.Len() != 0 {
		t.Error("book should be empty")
	}
}

func TestMarketSweep(t *testing.T) {
	b := newTestBook(t)

	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Sell, Price: 100, Remainder: 2})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Sell, Price: 105, Remainder: 3})

	trades := mustAdd(t, b, &Order{ID: 3, Type: MAR, Side: Buy, Price: 0, Remainder: 5})
	if len(trades) != 2 {
		t.Fatalf("market buy should sweep both levels, got %+v", trades)
	}
	if trades[0].Ask.Price != 100 || trades[0].Ask.Quantity != 2 {
		t.Errorf("first fill should be 2@100, got %+v", trades[0])
	}
	if trades[1].Ask.Price != 105 || trades[1].Ask.Quantity != 3 {
		t.Errorf("second fill should be 3@105, got %+v", trades[1])
	}
	// Repriced at the worst ask, so the bid leg carries 105.
	if trades[1].Bid.Price != 105 {
		t.Errorf("bid leg should carry the repriced 105, got %d", trades[1].Bid.Price)
	}
	if b.Len() != 0 {
		t.Error("book should be empty")
	}
}

func TestMarketOnEmptyOppositeSideDropped(t *testing.T) {
	b := newTestBook(t)
	trades := mustAdd(t, b, &Order{ID: 1, Type: MAR, Side: Sell, Price: 0, Remainder: 5})
	if len(trades) != 0 || b.Len() != 0 {
		t.Error("market order with no opposing liquidity must be dropped")
	}
}

func TestModifyLosesPriority(t *testing.T) {
	b := newTestBook(t)

	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Buy, Price: 100, Remainder: 5})

	trades, err := b.Modify(1, Change{Side: Buy, Price: 100, Remainder: 5})
	if err != nil || len(trades) != 0 {
		t.Fatalf("modify: trades=%v err=%v", trades, err)
	}
	checkInvariants(t, b)

	trades = mustAdd(t, b, &Order{ID: 3, Type: GTC, Side: Sell, Price: 100, Remainder: 5})
	if len(trades) != 1 || trades[0].Bid.OrderID != 2 {
		t.Fatalf("order 2 should fill first after the modify, got %+v", trades)
	}
}

func TestModifyUnknownIDIsNoop(t *testing.T) {
	b := newTestBook(t)
	trades, err := b.Modify(42, Change{Side: Buy, Price: 100, Remainder: 5})
	if err != nil || trades != nil {
		t.Errorf("modify of unknown id: trades=%v err=%v", trades, err)
	}
}

func TestModifyValidatesBeforeCancel(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})

	if _, err := b.Modify(1, Change{Side: SideUnknown, Price: 100, Remainder: 5}); err == nil {
		t.Fatal("expected ErrInvalidOrder")
	}
	if b.Len() != 1 {
		t.Error("bad change must leave the original order resting")
	}
	checkInvariants(t, b)
}

func TestModifyThenCancel(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})

	if _, err := b.Modify(1, Change{Side: Sell, Price: 200, Remainder: 3}); err != nil {
		t.Fatal(err)
	}
	b.Cancel(1)
	checkInvariants(t, b)
	if b.Len() != 0 {
		t.Error("book should be empty")
	}
	b.Cancel(1) // second cancel is a no-op
	checkInvariants(t, b)
}

func TestDuplicateIDIgnored(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})
	trades := mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Sell, Price: 100, Remainder: 5})
	if len(trades) != 0 {
		t.Error("duplicate id must be ignored without matching")
	}
	if b.Len() != 1 {
		t.Error("book must be unchanged")
	}
}

func TestUnknownSideRejected(t *testing.T) {
	b := newTestBook(t)
	if _, err := b.Add(&Order{ID: 1, Type: GTC, Price: 100, Remainder: 5}); err != ErrInvalidOrder {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
	if b.Len() != 0 {
		t.Error("rejected order must not touch the book")
	}
}

func TestNilOrderIgnored(t *testing.T) {
	b := newTestBook(t)
	trades, err := b.Add(nil)
	if trades != nil || err != nil {
		t.Errorf("nil order: trades=%v err=%v", trades, err)
	}
}

func TestCancelBatch(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Buy, Price: 99, Remainder: 5})
	mustAdd(t, b, &Order{ID: 3, Type: GTC, Side: Sell, Price: 101, Remainder: 5})

	b.CancelBatch([]uint64{1, 3, 99})
	checkInvariants(t, b)
	if b.Len() != 1 {
		t.Errorf("expected only order 2 left, have %d", b.Len())
	}
}

func TestBalancedLegs(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Sell, Price: 100, Remainder: 4})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Sell, Price: 101, Remainder: 6})

	trades := mustAdd(t, b, &Order{ID: 3, Type: GTC, Side: Buy, Price: 101, Remainder: 9})
	var bidQty, askQty int64
	for _, tr := range trades {
		bidQty += tr.Bid.Quantity
		askQty += tr.Ask.Quantity
	}
	if bidQty != askQty || bidQty != 9 {
		t.Errorf("legs must balance: bid=%d ask=%d", bidQty, askQty)
	}
}

func TestFillOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overfill")
		}
	}()
	o := &Order{ID: 1, Remainder: 3}
	o.Fill(4)
}

func TestDepthQuery(t *testing.T) {
	b := newTestBook(t)
	mustAdd(t, b, &Order{ID: 1, Type: GTC, Side: Buy, Price: 100, Remainder: 5})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Buy, Price: 100, Remainder: 2})
	mustAdd(t, b, &Order{ID: 3, Type: GTC, Side: Buy, Price: 98, Remainder: 1})
	mustAdd(t, b, &Order{ID: 4, Type: GTC, Side: Sell, Price: 103, Remainder: 7})

	bids, asks := b.Depth(1)
	if len(bids) != 1 || bids[0].Price != 100 || bids[0].Count != 2 || bids[0].Quantity != 7 {
		t.Errorf("unexpected bid depth %+v", bids)
	}
	if len(asks) != 1 || asks[0].Price != 103 || asks[0].Quantity != 7 {
		t.Errorf("unexpected ask depth %+v", asks)
	}

	bids, _ = b.Depth(0)
	if len(bids) != 2 || bids[1].Price != 98 {
		t.Errorf("full depth should list both bid levels best-first, got %+v", bids)
	}
}

func TestGFDPrune(t *testing.T) {
	var pruned []uint64
	b := newTestBook(t, WithPruneHook(func(ids []uint64) { pruned = ids }))

	mustAdd(t, b, &Order{ID: 1, Type: GFD, Side: Buy, Price: 100, Remainder: 5})
	mustAdd(t, b, &Order{ID: 2, Type: GTC, Side: Buy, Price: 99, Remainder: 5})
	mustAdd(t, b, &Order{ID: 3, Type: GFD, Side: Sell, Price: 105, Remainder: 5})

	b.pruneGFD()
	checkInvariants(t, b)

	if b.Len() != 1 {
		t.Errorf("only the GTC should remain, have %d", b.Len())
	}
	if len(pruned) != 2 {
		t.Errorf("hook should see both GFD ids, got %v", pruned)
	}
}

func TestNextPruneTime(t *testing.T) {
	loc := time.FixedZone("X", 0)

	now := time.Date(2024, 3, 10, 9, 30, 0, 0, loc)
	next := nextPruneTime(now, 16)
	if next.Day() != 10 || next.Hour() != 16 || next.Minute() != 0 {
		t.Errorf("before the hour: got %v", next)
	}

	now = time.Date(2024, 3, 10, 16, 0, 1, 0, loc)
	next = nextPruneTime(now, 16)
	if next.Day() != 11 || next.Hour() != 16 {
		t.Errorf("after the hour: got %v", next)
	}
}
