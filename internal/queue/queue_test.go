package queue

import "testing"

type item struct {
	name string
	auto bool
}

func (i item) AutoGenerated() bool { return i.auto }

func TestFIFOPopBatchPreservesOrder(t *testing.T) {
	t.Parallel()

	q := NewFIFO[item]()
	for _, name := range []string{"a", "b", "c", "d"} {
		q.Push(item{name: name})
	}

	batch := q.PopBatch(3)
	if len(batch) != 3 || batch[0].name != "a" || batch[1].name != "b" || batch[2].name != "c" {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}

	rest := q.PopBatch(10)
	if len(rest) != 1 || rest[0].name != "d" {
		t.Fatalf("unexpected remainder %+v", rest)
	}
	if got := q.PopBatch(10); got != nil {
		t.Fatalf("expected nil on empty queue, got %+v", got)
	}
}

func TestPromotionPlainFIFOWithoutLiveItems(t *testing.T) {
	t.Parallel()

	q := NewPromotion[item]()
	q.Push(item{name: "auto1", auto: true})
	q.Push(item{name: "auto2", auto: true})

	next, skipped, ok := q.PopNext()
	if !ok || next.name != "auto1" || len(skipped) != 0 {
		t.Fatalf("unexpected pop: next=%+v skipped=%+v ok=%v", next, skipped, ok)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func TestPromotionSkipsAndDropsFiller(t *testing.T) {
	t.Parallel()

	q := NewPromotion[item]()
	q.Push(item{name: "auto1", auto: true})
	q.Push(item{name: "auto2", auto: true})
	q.Push(item{name: "live1"})
	q.Push(item{name: "auto3", auto: true})
	q.Push(item{name: "live2"})

	next, skipped, ok := q.PopNext()
	if !ok || next.name != "live1" {
		t.Fatalf("expected live1, got %+v ok=%v", next, ok)
	}
	if len(skipped) != 2 || skipped[0].name != "auto1" || skipped[1].name != "auto2" {
		t.Fatalf("unexpected skipped %+v", skipped)
	}

	// Skipped filler is gone for good; auto3 was behind live1 and survives.
	if q.Len() != 2 {
		t.Fatalf("expected 2 remaining, got %d", q.Len())
	}
	next, skipped, ok = q.PopNext()
	if !ok || next.name != "live2" || len(skipped) != 1 || skipped[0].name != "auto3" {
		t.Fatalf("unexpected second pop: next=%+v skipped=%+v ok=%v", next, skipped, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}

func TestPromotionEmptyAndHasNonAuto(t *testing.T) {
	t.Parallel()

	q := NewPromotion[item]()
	if _, _, ok := q.PopNext(); ok {
		t.Fatalf("expected no item from empty queue")
	}
	if q.HasNonAuto() {
		t.Fatalf("empty queue must not report live items")
	}
	q.Push(item{name: "auto", auto: true})
	if q.HasNonAuto() {
		t.Fatalf("filler-only queue must not report live items")
	}
	q.Push(item{name: "live"})
	if !q.HasNonAuto() {
		t.Fatalf("expected live item to be reported")
	}
}
