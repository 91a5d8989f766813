package watcher

import (
	"sync"
	"testing"
	"time"
)

func TestRuleForFirstMatchWins(t *testing.T) {
	cfg := WatcherConfig{Rules: []Rule{
		{Pattern: "**/orders/*.json", Spec: "Order"},
		{Pattern: "**/*.json", Spec: "Any"},
	}}

	if r := cfg.RuleFor("/data/orders/1.json"); r == nil || r.Spec != "Order" {
		t.Errorf("expected the orders rule, got %+v", r)
	}
	if r := cfg.RuleFor("/data/other.json"); r == nil || r.Spec != "Any" {
		t.Errorf("expected the fallback rule, got %+v", r)
	}
	if r := cfg.RuleFor("/data/notes.txt"); r != nil {
		t.Errorf("unmatched path must return nil, got %+v", r)
	}
}

func TestDebouncerCoalescesByPath(t *testing.T) {
	var mu sync.Mutex
	var batches [][]FileEvent
	d := NewDebouncer(20*time.Millisecond, 100, func(events []FileEvent) {
		mu.Lock()
		batches = append(batches, events)
		mu.Unlock()
	})

	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/a", Type: EventModify, Timestamp: time.Now()})
	}
	d.Add(FileEvent{Path: "/b", Type: EventCreate, Timestamp: time.Now()})

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("five saves of one file coalesce into one event, got %d events", len(batches[0]))
	}
}

func TestDebouncerFlushesFullBatchImmediately(t *testing.T) {
	var mu sync.Mutex
	flushed := 0
	d := NewDebouncer(time.Hour, 2, func(events []FileEvent) {
		mu.Lock()
		flushed += len(events)
		mu.Unlock()
	})

	d.Add(FileEvent{Path: "/a"})
	d.Add(FileEvent{Path: "/b"})

	mu.Lock()
	defer mu.Unlock()
	if flushed != 2 {
		t.Errorf("a full batch must flush without waiting, flushed %d", flushed)
	}
}

func TestDebouncerStopFlushesPending(t *testing.T) {
	var mu sync.Mutex
	flushed := 0
	d := NewDebouncer(time.Hour, 100, func(events []FileEvent) {
		mu.Lock()
		flushed += len(events)
		mu.Unlock()
	})

	d.Add(FileEvent{Path: "/a"})
	d.Stop()
	d.Add(FileEvent{Path: "/b"})

	mu.Lock()
	defer mu.Unlock()
	if flushed != 1 {
		t.Errorf("stop flushes pending events and rejects later ones, flushed %d", flushed)
	}
}

func TestDispatchRoutesThroughRules(t *testing.T) {
	var mu sync.Mutex
	var got [][2]string
	w, err := New(WatcherConfig{
		DebounceWindow: time.Millisecond,
		MaxBatchSize:   100,
		Rules:          []Rule{{Pattern: "**/*.json", Spec: "Order"}},
	}, func(path, specName string) {
		mu.Lock()
		got = append(got, [2]string{path, specName})
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.dispatch("/data/order.json")
	w.dispatch("/data/readme.md")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("only rule-matched files dispatch, got %d calls", len(got))
	}
	if got[0] != [2]string{"/data/order.json", "Order"} {
		t.Errorf("dispatch got %v", got[0])
	}
}

func TestShouldIgnore(t *testing.T) {
	w := &Watcher{config: WatcherConfig{
		IgnorePatterns: []string{"**/node_modules/**"},
	}}

	if !w.shouldIgnore("/p/.hidden") {
		t.Error("hidden files ignore by default")
	}
	if !w.shouldIgnore("/p/node_modules/x.json") {
		t.Error("ignore patterns apply")
	}
	if w.shouldIgnore("/p/data.json") {
		t.Error("ordinary files are watched")
	}
}
