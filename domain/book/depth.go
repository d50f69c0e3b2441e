package book

// depthRow aggregates the live orders at one price: count of orders and
// the sum of their remainders. Rows exist iff count > 0.
type depthRow struct {
	count int
	qty   int64
}

// depth is the per-side aggregated index. It shares the side's
// comparator so a best-first walk stays within the price limit check.
type depth struct {
	rows *ladder[*depthRow]
}

func newDepth(before func(a, b int64) bool) *depth {
	return &depth{rows: newLadder[*depthRow](before)}
}

func (d *depth) add(price, qty int64) {
	row := d.rows.GetOrInsert(price, func() *depthRow { return &depthRow{} })
	row.count++
	row.qty += qty
}

func (d *depth) remove(price, qty int64) {
	row, ok := d.rows.Get(price)
	if !ok {
		return
	}
	row.count--
	row.qty -= qty
	if row.count <= 0 {
		d.rows.Delete(price)
	}
}

// match consumes traded quantity from a still-live order; the count is
// untouched.
func (d *depth) match(price, qty int64) {
	row, ok := d.rows.Get(price)
	if !ok {
		return
	}
	row.qty -= qty
}

// canFill walks rows best-first, accumulating quantity while the price
// stays within limit. O(levels touched).
func (d *depth) canFill(limit, quantity int64) bool {
	if quantity == 0 {
		return true
	}
	ok := false
	d.rows.Walk(func(price int64, row *depthRow) bool {
		if d.rows.before(limit, price) {
			return false
		}
		if row.qty >= quantity {
			ok = true
			return false
		}
		quantity -= row.qty
		return true
	})
	return ok
}
