package event

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
)

func TestEmitter_DeliversSameOrderToAllListeners(t *testing.T) {
	e := NewEmitter[int]()

	var a, b []int
	e.On(func(v int) { a = append(a, v) })
	e.On(func(v int) { b = append(b, v) })

	want := []int{1, 2, 3, 4, 5}
	for _, v := range want {
		e.Emit(v)
	}

	if !reflect.DeepEqual(a, want) {
		t.Errorf("listener a got %v, want %v", a, want)
	}
	if !reflect.DeepEqual(b, want) {
		t.Errorf("listener b got %v, want %v", b, want)
	}
}

func TestEmitter_SubscribeDoesNotReplay(t *testing.T) {
	e := NewEmitter[string]()
	e.Emit("before")

	var got []string
	e.On(func(v string) { got = append(got, v) })
	if len(got) != 0 {
		t.Fatalf("subscribe delivered %v synchronously, want nothing", got)
	}

	e.Emit("after")
	if !reflect.DeepEqual(got, []string{"after"}) {
		t.Errorf("got %v, want [after]", got)
	}
}

func TestEmitter_UnsubscribeTwiceIsSafe(t *testing.T) {
	e := NewEmitter[int]()

	var count int
	unsub := e.On(func(int) { count++ })
	other := 0
	e.On(func(int) { other++ })

	e.Emit(1)
	unsub()
	unsub()
	e.Emit(2)
	e.Emit(3)

	if count != 1 {
		t.Errorf("unsubscribed listener called %d times, want 1", count)
	}
	if other != 3 {
		t.Errorf("remaining listener called %d times, want 3", other)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}

func TestEmitter_ListenerPanicIsIsolated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewEmitter[int](WithName("test"), WithLogger(logger))

	var before, after []int
	e.On(func(v int) { before = append(before, v) })
	e.On(func(v int) {
		if v == 2 {
			panic("boom")
		}
	})
	e.On(func(v int) { after = append(after, v) })

	e.Emit(1)
	e.Emit(2)
	e.Emit(3)

	want := []int{1, 2, 3}
	if !reflect.DeepEqual(before, want) || !reflect.DeepEqual(after, want) {
		t.Errorf("before=%v after=%v, want both %v", before, after, want)
	}
	if !strings.Contains(buf.String(), "listener panicked") {
		t.Errorf("expected fault to be logged, got %q", buf.String())
	}
}

func TestEmitter_ReentrantEmitKeepsOrder(t *testing.T) {
	e := NewEmitter[int]()

	var a, b []int
	e.On(func(v int) {
		a = append(a, v)
		if v == 1 {
			e.Emit(2)
		}
	})
	e.On(func(v int) { b = append(b, v) })

	e.Emit(1)

	want := []int{1, 2}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("a = %v, want %v", a, want)
	}
	// b must see 1 before 2 even though 2 was emitted during delivery of 1.
	if !reflect.DeepEqual(b, want) {
		t.Errorf("b = %v, want %v", b, want)
	}
}

func TestEmitter_UnsubscribeDuringDeliverySkipsLaterListener(t *testing.T) {
	e := NewEmitter[int]()

	var unsubB Unsubscribe
	var gotB []int
	e.On(func(v int) {
		if v == 2 {
			unsubB()
		}
	})
	unsubB = e.On(func(v int) { gotB = append(gotB, v) })

	e.Emit(1)
	e.Emit(2)

	if !reflect.DeepEqual(gotB, []int{1}) {
		t.Errorf("gotB = %v, want [1]", gotB)
	}
}

func TestEmitter_ConcurrentEmitDeliversEverything(t *testing.T) {
	e := NewEmitter[int]()

	var mu sync.Mutex
	var a, b []int
	e.On(func(v int) { mu.Lock(); a = append(a, v); mu.Unlock() })
	e.On(func(v int) { mu.Lock(); b = append(b, v); mu.Unlock() })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			e.Emit(v)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("len(a)=%d len(b)=%d, want 50", len(a), len(b))
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("listeners observed different orders:\n a=%v\n b=%v", a, b)
	}
}

func TestEmitter_ClearDropsListeners(t *testing.T) {
	e := NewEmitter[int]()
	called := false
	unsub := e.On(func(int) { called = true })

	e.Clear()
	e.Emit(1)
	unsub()

	if called {
		t.Error("listener called after Clear")
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
}
