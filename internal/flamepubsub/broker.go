// Package flamepubsub fans values out to subscribers without ever blocking the
// publisher.
package flamepubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadySubscribed is returned when a channel subscribes twice.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrNotSubscribed is returned when stats are requested for an unknown
	// channel.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Broker delivers published values to every subscribed channel. Sends are
// non-blocking: a subscriber whose channel is full drops the value.
type Broker[T any] struct {
	mtx         sync.Mutex
	subscribers map[chan<- T]*subscriber[T]
	active      atomic.Bool
}

type subscriber[T any] struct {
	allow func(T) bool
	ch    chan<- T
	stats Stats
}

// NewBroker returns an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: map[chan<- T]*subscriber[T]{},
	}
}

// Active returns true if there is at least one subscriber.
func (b *Broker[T]) Active() bool {
	return b.active.Load()
}

// Publish sends val to every subscriber that allows it.
func (b *Broker[T]) Publish(val T) {
	if !b.active.Load() { // fast path
		return
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	for _, sub := range b.subscribers {
		if sub.allow != nil && !sub.allow(val) {
			sub.stats.Skips++
			continue
		}
		select {
		case sub.ch <- val:
			sub.stats.Sends++
		default:
			sub.stats.Drops++
		}
	}
}

// Subscribe forwards published values to ch until ctx is canceled, and then
// returns the final stats for the subscription along with the context error.
// If allow is non-nil, only values for which it returns true are sent.
func (b *Broker[T]) Subscribe(ctx context.Context, allow func(T) bool, ch chan<- T) (Stats, error) {
	if err := func() error {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		if _, ok := b.subscribers[ch]; ok {
			return ErrAlreadySubscribed
		}

		b.subscribers[ch] = &subscriber[T]{
			allow: allow,
			ch:    ch,
		}

		b.active.Store(len(b.subscribers) > 0)

		return nil
	}(); err != nil {
		return Stats{}, err
	}

	<-ctx.Done()

	sub := func() *subscriber[T] {
		b.mtx.Lock()
		defer b.mtx.Unlock()

		sub := b.subscribers[ch]
		delete(b.subscribers, ch)

		b.active.Store(len(b.subscribers) > 0)

		return sub
	}()
	if sub == nil {
		return Stats{}, fmt.Errorf("%w (programmer error)", ErrNotSubscribed)
	}

	return sub.stats, ctx.Err()
}

// Stats returns the current stats for the subscription on ch.
func (b *Broker[T]) Stats(ch chan<- T) (Stats, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	sub, ok := b.subscribers[ch]
	if !ok {
		return Stats{}, ErrNotSubscribed
	}

	return sub.stats, nil
}

// Stats counts what happened to published values for one subscriber.
type Stats struct {
	Skips uint64 `json:"skips"`
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"`
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
