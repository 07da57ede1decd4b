package events

import (
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var got []ExportProgressEvent
	unsub := bus.Subscribe(func(e ExportProgressEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	defer unsub()

	bus.Publish(ExportProgressEvent{JobID: "job-1", Ratio: 0.5})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("event never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].JobID != "job-1" || got[0].Ratio != 0.5 {
		t.Errorf("unexpected event: %+v", got[0])
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := New()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		var once sync.Once
		unsub := bus.Subscribe(func(e SessionStateEvent) {
			once.Do(wg.Done)
		})
		defer unsub()
	}

	bus.Publish(SessionStateEvent{SessionID: "s", State: "active"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}

func TestSubscribeUnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(s string) {})
	unsub() // must not panic
}

func TestSubscribeToChannelDropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[ExportProgressEvent](bus, ch)
	defer unsub()

	for i := 0; i < 10; i++ {
		bus.Publish(ExportProgressEvent{JobID: "j", Ratio: float64(i) / 10})
	}

	// At most one event fits; the rest are dropped without blocking Publish.
	select {
	case e := <-ch:
		if _, ok := e.(ExportProgressEvent); !ok {
			t.Errorf("unexpected event type %T", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered to channel")
	}
}
