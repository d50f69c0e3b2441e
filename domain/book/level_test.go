package book

import "testing"

func levelIDs(l *level) []uint64 {
	var ids []uint64
	for o := l.head; o != nil; o = o.next {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestLevelFIFO(t *testing.T) {
	l := &level{price: 100}
	a := &Order{ID: 1, Remainder: 1}
	b := &Order{ID: 2, Remainder: 1}
	c := &Order{ID: 3, Remainder: 1}
	l.enqueue(a)
	l.enqueue(b)
	l.enqueue(c)

	if got := levelIDs(l); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected order %v", got)
	}
	if l.size != 3 {
		t.Errorf("size = %d", l.size)
	}
}

func TestLevelUnlinkMiddleAndEnds(t *testing.T) {
	l := &level{price: 100}
	a := &Order{ID: 1, Remainder: 1}
	b := &Order{ID: 2, Remainder: 1}
	c := &Order{ID: 3, Remainder: 1}
	l.enqueue(a)
	l.enqueue(b)
	l.enqueue(c)

	l.unlink(b)
	if got := levelIDs(l); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("after middle unlink: %v", got)
	}

	l.unlink(a)
	if l.head != c || l.tail != c {
		t.Error("after head unlink, c should be both head and tail")
	}

	l.unlink(c)
	if !l.empty() || l.size != 0 {
		t.Error("level should be empty")
	}
}
