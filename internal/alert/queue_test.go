package alert

import (
	"sync"
	"testing"
)

func TestQueueTakeClears(t *testing.T) {
	q := NewQueue(0)
	q.Push(Alert{Kind: KindPreNotification, PresetName: "A"})
	q.Push(Alert{Kind: KindSegmentFinished, PresetName: "A"})

	first := q.Take()
	if len(first) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(first))
	}
	if first[0].Seq != 1 || first[1].Seq != 2 {
		t.Fatalf("expected sequence 1,2 got %d,%d", first[0].Seq, first[1].Seq)
	}
	if second := q.Take(); len(second) != 0 {
		t.Fatalf("expected empty second take, got %d", len(second))
	}
}

func TestQueueLimitDropsOldest(t *testing.T) {
	q := NewQueue(2)
	q.Push(Alert{PresetName: "a"})
	q.Push(Alert{PresetName: "b"})
	q.Push(Alert{PresetName: "c"})

	items := q.Take()
	if len(items) != 2 || items[0].PresetName != "b" || items[1].PresetName != "c" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestQueueConcurrentTakeDeliversOnce(t *testing.T) {
	q := NewQueue(0)
	for i := 0; i < 100; i++ {
		q.Push(Alert{Kind: KindFinished})
	}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(q.Take())
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 100 {
		t.Fatalf("expected 100 alerts delivered once, got %d", total)
	}
}
