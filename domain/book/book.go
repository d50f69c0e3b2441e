package book

import (
	"errors"
	"sync"
)

// ErrInvalidOrder rejects admission of an order without a side. The book
// is unchanged when it is returned.
var ErrInvalidOrder = errors.New("book: order has no side")

type entry struct {
	order *Order
	lvl   *level
}

// bookSide pairs one price ladder of FIFO levels with its aggregated
// depth index. Both are kept in lockstep on every queue mutation.
type bookSide struct {
	levels *ladder[*level]
	depth  *depth
}

func newBookSide(before func(a, b int64) bool) *bookSide {
	return &bookSide{
		levels: newLadder[*level](before),
		depth:  newDepth(before),
	}
}

// Book is a single-symbol limit order book with price-time priority.
// One mutex serializes every public operation and the GFD pruner; all
// invariants span the directory, both ladders and both depth indexes,
// so they share a single critical section.
type Book struct {
	mu     sync.Mutex
	orders map[uint64]entry
	bids   *bookSide
	asks   *bookSide

	pruneHour int
	onPrune   func(ids []uint64)
	done      chan struct{}
	wg        sync.WaitGroup
}

type Option func(*Book)

// WithPruneHour sets the local-time hour at which GFD orders are
// cancelled. Default 16.
func WithPruneHour(hour int) Option {
	return func(b *Book) { b.pruneHour = hour }
}

// WithPruneHook installs a callback invoked with the ids cancelled by
// each prune pass, after the cancels complete. Used by the service layer
// to journal prune cancels.
func WithPruneHook(fn func(ids []uint64)) Option {
	return func(b *Book) { b.onPrune = fn }
}

func New(opts ...Option) *Book {
	b := &Book{
		orders:    make(map[uint64]entry),
		bids:      newBookSide(descending),
		asks:      newBookSide(ascending),
		pruneHour: defaultPruneHour,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.wg.Add(1)
	go b.pruneLoop()
	return b
}

// Close stops the GFD pruner and waits for it. It must not race other
// operations on the book.
func (b *Book) Close() {
	close(b.done)
	b.wg.Wait()
}

// Add admits an order and returns the trades it produced. Duplicate ids
// are silently ignored so gateway retries stay idempotent.
func (b *Book) Add(o *Order) ([]Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(o)
}

func (b *Book) add(o *Order) ([]Trade, error) {
	if o == nil {
		return nil, nil
	}
	if _, ok := b.orders[o.ID]; ok {
		return nil, nil
	}
	if o.Side == SideUnknown {
		return nil, ErrInvalidOrder
	}

	if o.Type == MAR {
		if !b.repriceMarket(o) {
			return nil, nil
		}
	}

	if o.Type == FAK && !b.canMatch(o.Side, o.Price) {
		return nil, nil
	}

	if o.Type == FOK && !b.canFullyFill(o.Side, o.Price, o.Remainder) {
		return nil, nil
	}

	side := b.sideOf(o.Side)
	lvl := side.levels.GetOrInsert(o.Price, func() *level { return &level{price: o.Price} })
	lvl.enqueue(o)
	b.orders[o.ID] = entry{order: o, lvl: lvl}
	side.depth.add(o.Price, o.Remainder)

	return b.match(), nil
}

// Cancel removes a resting order. Unknown ids are a no-op.
func (b *Book) Cancel(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel(id)
}

// CancelBatch removes a set of orders under one lock acquisition.
func (b *Book) CancelBatch(ids []uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.cancel(id)
	}
}

func (b *Book) cancel(id uint64) {
	e, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)

	o := e.order
	side := b.sideOf(o.Side)
	e.lvl.unlink(o)
	if e.lvl.empty() {
		side.levels.Delete(o.Price)
	}
	side.depth.remove(o.Price, o.Remainder)
}

// Modify replaces an order's side, price and remainder, keeping its id
// and type. The replacement re-enters at the tail of its new level, so
// time priority is lost. Unknown ids are a no-op.
func (b *Book) Modify(id uint64, change Change) ([]Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.orders[id]
	if !ok {
		return nil, nil
	}
	// Validate before the cancel step: a bad change must not destroy
	// the original order.
	if change.Side == SideUnknown {
		return nil, ErrInvalidOrder
	}

	repl := &Order{
		ID:        id,
		Type:      e.order.Type,
		Side:      change.Side,
		Price:     change.Price,
		Remainder: change.Remainder,
	}
	b.cancel(id)
	return b.add(repl)
}

// ---- matching ----

func (b *Book) match() []Trade {
	var trades []Trade

	for {
		bidPrice, bidLvl, ok := b.bids.levels.Best()
		if !ok {
			break
		}
		askPrice, askLvl, ok := b.asks.levels.Best()
		if !ok {
			break
		}
		if askPrice > bidPrice {
			break
		}

		for !bidLvl.empty() && !askLvl.empty() {
			trades = append(trades, b.matchTop(bidLvl, askLvl))
		}

		if bidLvl.empty() {
			b.bids.levels.Delete(bidPrice)
		}
		if askLvl.empty() {
			b.asks.levels.Delete(askPrice)
		}
	}

	b.sweepFAK()

	return trades
}

func (b *Book) matchTop(bidLvl, askLvl *level) Trade {
	bid := bidLvl.head
	ask := askLvl.head

	quantity := min(bid.Remainder, ask.Remainder)

	bid.Fill(quantity)
	if bid.Filled() {
		bidLvl.unlink(bid)
		delete(b.orders, bid.ID)
		b.bids.depth.remove(bid.Price, quantity)
	} else {
		b.bids.depth.match(bid.Price, quantity)
	}

	ask.Fill(quantity)
	if ask.Filled() {
		askLvl.unlink(ask)
		delete(b.orders, ask.ID)
		b.asks.depth.remove(ask.Price, quantity)
	} else {
		b.asks.depth.match(ask.Price, quantity)
	}

	return Trade{
		Bid: TradeInfo{OrderID: bid.ID, Price: bid.Price, Quantity: quantity},
		Ask: TradeInfo{OrderID: ask.ID, Price: ask.Price, Quantity: quantity},
	}
}

// sweepFAK cancels a fill-and-kill left at the top of either side once
// matching halts: a resting FAK cannot wait for the next cross.
func (b *Book) sweepFAK() {
	if _, lvl, ok := b.bids.levels.Best(); ok && lvl.head.Type == FAK {
		b.cancel(lvl.head.ID)
	}
	if _, lvl, ok := b.asks.levels.Best(); ok && lvl.head.Type == FAK {
		b.cancel(lvl.head.ID)
	}
}

// repriceMarket turns a market order into a GTC pegged at the worst
// price on the opposite side, so it can sweep the whole opposing book
// without naming an infinite price. An empty opposite side drops it.
func (b *Book) repriceMarket(o *Order) bool {
	opp := b.asks
	if o.Side == Sell {
		opp = b.bids
	}
	worst, _, ok := opp.levels.Worst()
	if !ok {
		return false
	}
	o.Type = GTC
	o.Price = worst
	return true
}

func (b *Book) canMatch(side Side, price int64) bool {
	opp := b.asks
	if side == Sell {
		opp = b.bids
	}
	best, _, ok := opp.levels.Best()
	if !ok {
		return false
	}
	// The opposite ladder fronts its own best; crossing means our price
	// does not outrank it under the opposite ordering.
	return !opp.levels.before(price, best)
}

func (b *Book) canFullyFill(side Side, price int64, quantity int64) bool {
	if side == SideUnknown || !b.canMatch(side, price) {
		return false
	}
	opp := b.asks
	if side == Sell {
		opp = b.bids
	}
	return opp.depth.canFill(price, quantity)
}

func (b *Book) sideOf(s Side) *bookSide {
	if s == Sell {
		return b.asks
	}
	return b.bids
}

// ---- queries ----

// LevelInfo is one aggregated depth row as reported to feeds.
type LevelInfo struct {
	Price    int64
	Count    int
	Quantity int64
}

// Depth returns up to limit aggregated rows per side, best-first.
// limit <= 0 means all.
func (b *Book) Depth(limit int) (bids, asks []LevelInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return collectDepth(b.bids.depth, limit), collectDepth(b.asks.depth, limit)
}

func collectDepth(d *depth, limit int) []LevelInfo {
	var out []LevelInfo
	d.rows.Walk(func(price int64, row *depthRow) bool {
		out = append(out, LevelInfo{Price: price, Count: row.count, Quantity: row.qty})
		return limit <= 0 || len(out) < limit
	})
	return out
}

// BestBid reports the highest resting bid price.
func (b *Book) BestBid() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, _, ok := b.bids.levels.Best()
	return price, ok
}

// BestAsk reports the lowest resting ask price.
func (b *Book) BestAsk() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, _, ok := b.asks.levels.Best()
	return price, ok
}

// Len reports the number of resting orders.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}
