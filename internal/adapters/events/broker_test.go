package events

import (
	"testing"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	_ ports.TransitionBroker = (*MemoryBroker)(nil)
	_ ports.TransitionBroker = (*RedisBroker)(nil)
)

func sampleTransition() domain.Transition {
	return domain.Transition{
		From:      domain.StateTourComputed,
		To:        domain.StateTourMutated,
		Operation: "AddDemand",
		Version:   4,
		At:        time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, ch chan domain.Transition) domain.Transition {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for transition")
		return domain.Transition{}
	}
}

func TestMemoryBrokerPublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("main")
	other := b.Subscribe("other")

	b.Publish("main", sampleTransition())
	assert.Equal(t, sampleTransition(), receive(t, ch))

	select {
	case got := <-other:
		t.Fatalf("unexpected transition on other topic: %+v", got)
	default:
	}

	b.Unsubscribe("main", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// second unsubscribe is a no-op
	b.Unsubscribe("main", ch)
	b.Publish("main", sampleTransition())
}

func TestMemoryBrokerDropsWhenSubscriberIsSlow(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("main")
	for range 20 {
		b.Publish("main", sampleTransition())
	}
	assert.Len(t, ch, cap(ch))
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := NewRedisBroker(rdb, zap.NewNop())
	ch := b.Subscribe("main")

	b.Publish("main", sampleTransition())
	got := receive(t, ch)

	assert.Equal(t, domain.StateTourMutated, got.To)
	assert.Equal(t, "AddDemand", got.Operation)
	assert.Equal(t, uint64(4), got.Version)
	assert.True(t, sampleTransition().At.Equal(got.At))

	b.Unsubscribe("main", ch)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
