// Package feed drives an engine the way a live kitchen would: orders arrive
// at a fixed rate and each is picked up after a random delay.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/lazypower/larder/internal/engine"
)

// ErrPickupTimeout is returned by Run when pickups are still outstanding
// after Options.AwaitTimeout.
var ErrPickupTimeout = errors.New("timed out waiting for pickups")

// Kitchen is the part of the engine the feeder drives.
type Kitchen interface {
	Place(item engine.Item) ([]engine.Action, error)
	Pickup(id string) (engine.Action, bool)
}

// Options controls pacing.
type Options struct {
	Rate      time.Duration // interval between placements
	MinPickup time.Duration
	MaxPickup time.Duration
	// AwaitTimeout bounds the wait for outstanding pickups once every item
	// is placed. Zero waits until they all run.
	AwaitTimeout time.Duration
	Seed         uint64
}

// DefaultOptions matches the challenge harness: one order every 500ms,
// picked up 4 to 8 seconds later, giving up on stragglers after a minute.
func DefaultOptions() Options {
	return Options{
		Rate:         500 * time.Millisecond,
		MinPickup:    4 * time.Second,
		MaxPickup:    8 * time.Second,
		AwaitTimeout: time.Minute,
	}
}

// Validate rejects non-positive rates and inverted pickup windows.
func (o Options) Validate() error {
	if o.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %s", o.Rate)
	}
	if o.MinPickup < 0 {
		return fmt.Errorf("min pickup must not be negative, got %s", o.MinPickup)
	}
	if o.MaxPickup < o.MinPickup {
		return fmt.Errorf("max pickup %s is below min pickup %s", o.MaxPickup, o.MinPickup)
	}
	if o.AwaitTimeout < 0 {
		return fmt.Errorf("await timeout must not be negative, got %s", o.AwaitTimeout)
	}
	return nil
}

// Feeder places items on a ticker and schedules their pickups.
type Feeder struct {
	kitchen Kitchen
	opts    Options
	rng     *rand.Rand

	// OnAction, if set, sees every action the feeder causes, after the
	// engine call that produced it returns. It may be called concurrently.
	OnAction func(engine.Action)
}

// New creates a Feeder over k.
func New(k Kitchen, opts Options) (*Feeder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("new feeder: %w", err)
	}
	return &Feeder{
		kitchen: k,
		opts:    opts,
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Run places items in order, one per tick starting immediately, and waits
// for every scheduled pickup. Items the engine rejects are logged and get
// no pickup. On cancellation placement stops, pending pickups are abandoned
// and the context error is returned. If AwaitTimeout passes first, pending
// pickups are abandoned and ErrPickupTimeout is returned. Run returns the
// number of items placed.
func (f *Feeder) Run(ctx context.Context, items []engine.Item) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	pickups, abandon := context.WithCancel(ctx)
	defer abandon()

	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(f.opts.Rate)
	defer ticker.Stop()

	placed := 0
	for i, item := range items {
		if i > 0 {
			select {
			case <-ctx.Done():
				return placed, ctx.Err()
			case <-ticker.C:
			}
		}

		actions, err := f.kitchen.Place(item)
		if err != nil {
			if errors.Is(err, engine.ErrDuplicateItem) || errors.Is(err, engine.ErrInvalidItem) {
				log.Printf("feed: skipping order %d: %v", i, err)
				continue
			}
			return placed, fmt.Errorf("place order %d: %w", i, err)
		}
		placed++
		f.report(actions...)

		delay := f.pickupDelay()
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-pickups.Done():
				return
			case <-timer.C:
			}
			if a, ok := f.kitchen.Pickup(id); ok {
				f.report(a)
			}
		}(item.ID)
	}

	if err := f.awaitPickups(&wg, abandon); err != nil {
		return placed, err
	}
	return placed, ctx.Err()
}

// awaitPickups waits for wg, abandoning whatever is still pending once
// AwaitTimeout elapses.
func (f *Feeder) awaitPickups(wg *sync.WaitGroup, abandon context.CancelFunc) error {
	if f.opts.AwaitTimeout <= 0 {
		wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(f.opts.AwaitTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		abandon()
		<-done
		return fmt.Errorf("%w after %s", ErrPickupTimeout, f.opts.AwaitTimeout)
	}
}

// pickupDelay draws uniformly from [MinPickup, MaxPickup].
func (f *Feeder) pickupDelay() time.Duration {
	span := int64(f.opts.MaxPickup - f.opts.MinPickup)
	if span <= 0 {
		return f.opts.MinPickup
	}
	return f.opts.MinPickup + time.Duration(f.rng.Int64N(span+1))
}

func (f *Feeder) report(actions ...engine.Action) {
	if f.OnAction == nil {
		return
	}
	for _, a := range actions {
		f.OnAction(a)
	}
}
