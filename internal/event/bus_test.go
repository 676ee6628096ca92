package event

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe("task.completed", func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewTaskCompletedEvent("weather", 1, 100*time.Millisecond))

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	ev, ok := received[0].(TaskCompletedEvent)
	if !ok {
		t.Fatalf("received %T, want TaskCompletedEvent", received[0])
	}
	if ev.TaskType != "weather" || ev.Attempts != 1 {
		t.Errorf("event = %+v, want weather/1 attempt", ev)
	}
	if ev.Timestamp().IsZero() {
		t.Error("event timestamp is zero")
	}
}

func TestPublishOnlyMatchingType(t *testing.T) {
	bus := NewBus()

	var completed, failed int
	bus.Subscribe("task.completed", func(e Event) { completed++ })
	bus.Subscribe("task.failed", func(e Event) { failed++ })

	bus.Publish(NewTaskCompletedEvent("timer", 1, time.Millisecond))

	if completed != 1 {
		t.Errorf("completed handler ran %d times, want 1", completed)
	}
	if failed != 0 {
		t.Errorf("failed handler ran %d times, want 0", failed)
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	var all []string
	bus.SubscribeAll(func(e Event) {
		all = append(all, e.EventType())
	})

	bus.Publish(NewTaskCompletedEvent("weather", 1, time.Millisecond))
	bus.Publish(NewCacheEvictedEvent(3, "expired", 1024))

	want := []string{"task.completed", "cache.evicted"}
	if len(all) != len(want) {
		t.Fatalf("wildcard received %v, want %v", all, want)
	}
	for i, typ := range want {
		if all[i] != typ {
			t.Errorf("all[%d] = %q, want %q", i, all[i], typ)
		}
	}
}

func TestSpecificHandlersRunBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) { order = append(order, "wildcard") })
	bus.Subscribe("task.failed", func(e Event) { order = append(order, "specific") })

	bus.Publish(NewTaskFailedEvent("calendar", 1, "boom"))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("handler order = %v, want [specific wildcard]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	id := bus.Subscribe("task.completed", func(e Event) { calls++ })

	bus.Publish(NewTaskCompletedEvent("weather", 1, time.Millisecond))
	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned false for a live subscription")
	}
	bus.Publish(NewTaskCompletedEvent("weather", 1, time.Millisecond))

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for an already-removed subscription")
	}
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	var survived bool
	bus.Subscribe("task.completed", func(e Event) { panic("broken handler") })
	bus.Subscribe("task.completed", func(e Event) { survived = true })

	bus.Publish(NewTaskCompletedEvent("weather", 1, time.Millisecond))

	if !survived {
		t.Error("handler after a panicking one did not run")
	}
}

func TestClearRemovesAllSubscriptions(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("task.completed", func(e Event) {})
	bus.SubscribeAll(func(e Event) {})

	if got := bus.SubscriptionCount(); got != 2 {
		t.Fatalf("SubscriptionCount = %d, want 2", got)
	}
	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount after Clear = %d, want 0", got)
	}
}

func TestConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("cache.evicted", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewCacheEvictedEvent(1, "score", 0))
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("handler ran %d times, want 10", count)
	}
}
