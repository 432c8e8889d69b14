package livehub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestHub_PublishOrderedPerTopic(t *testing.T) {
	t.Parallel()

	hub := New()
	defer hub.Close()

	key := Key{MatchID: "m-1", Role: RoleDetail}
	sub, err := hub.Subscribe(key)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	for i := 0; i < 5; i++ {
		hub.Publish(key, KindStateChanged, nil)
	}
	hub.Publish(Key{MatchID: "m-2", Role: RoleDetail}, KindStateChanged, nil)

	for want := uint64(1); want <= 5; want++ {
		msg := <-sub.C
		if msg.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, msg.Seq)
		}
		if msg.MatchID != "m-1" {
			t.Fatalf("message leaked from another match: %+v", msg)
		}
	}
	select {
	case msg := <-sub.C:
		t.Fatalf("unexpected extra message: %+v", msg)
	default:
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	hub := New(WithBufferSize(2))
	defer hub.Close()

	key := Key{MatchID: "m-1", Role: RoleTracker}
	slow, err := hub.Subscribe(key)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 0; i < 3; i++ {
		hub.Publish(key, KindPlayerGroupsChanged, nil)
	}

	if got := hub.SubscriberCount(key); got != 0 {
		t.Fatalf("expected slow subscriber to be removed, count=%d", got)
	}

	received := 0
	for range slow.C {
		received++
	}
	if received != 2 {
		t.Fatalf("expected buffered messages before close, got %d", received)
	}
	slow.Close()
}

func TestHub_WaitReturnsImmediatelyWhenBehind(t *testing.T) {
	t.Parallel()

	hub := New()
	key := Key{MatchID: "m-1", Role: RoleDetail}
	hub.Publish(key, KindStateChanged, nil)

	changed, seq, err := hub.Wait(context.Background(), key, 0, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !changed || seq != 1 {
		t.Fatalf("expected immediate change at seq 1, got changed=%v seq=%d", changed, seq)
	}
}

func TestHub_WaitTimesOutOnFakeClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	hub := New(WithClock(clock))
	key := Key{MatchID: "m-1", Role: RoleDetail}

	type result struct {
		changed bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		changed, _, err := hub.Wait(context.Background(), key, 0, time.Second)
		done <- result{changed: changed, err: err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiter never armed its timer: %v", err)
	}
	clock.Advance(time.Second)

	select {
	case res := <-done:
		if res.err != nil || res.changed {
			t.Fatalf("expected idle timeout, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("wait did not return after timeout")
	}
}

func TestHub_WaitWakesOnPublish(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	hub := New(WithClock(clock))
	key := Key{MatchID: "m-1", Role: RoleDetail}

	var wg sync.WaitGroup
	wg.Add(1)
	var changed bool
	var seq uint64
	go func() {
		defer wg.Done()
		changed, seq, _ = hub.Wait(context.Background(), key, 0, 25*time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("waiter never armed its timer: %v", err)
	}
	hub.Publish(key, KindStateChanged, nil)
	wg.Wait()

	if !changed || seq != 1 {
		t.Fatalf("expected wake-up at seq 1, got changed=%v seq=%d", changed, seq)
	}
}

func TestHub_WaitHonoursContextCancel(t *testing.T) {
	t.Parallel()

	hub := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := hub.Wait(ctx, Key{MatchID: "m-1", Role: RoleTimer}, 0, time.Minute)
	if err == nil {
		t.Fatalf("expected context error")
	}
}

func TestHub_ClosedRejectsSubscribe(t *testing.T) {
	t.Parallel()

	hub := New()
	sub, err := hub.Subscribe(Key{MatchID: "m-1", Role: RoleDetail})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	hub.Close()

	if _, ok := <-sub.C; ok {
		t.Fatalf("expected subscriber channel to be closed")
	}
	sub.Close()
	if _, err := hub.Subscribe(Key{MatchID: "m-1", Role: RoleDetail}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	if role, ok := ParseRole("timer"); !ok || role != RoleTimer {
		t.Fatalf("expected timer role, got %q ok=%v", role, ok)
	}
	if _, ok := ParseRole("scoreboard"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
}
