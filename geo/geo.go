// Package geo abstracts position sampling so the location sharing loop can
// run against real hardware, a platform bridge, or a scripted source.
package geo

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrPermissionDenied indicates the user refused location access.
	ErrPermissionDenied = errors.New("geo: permission denied")
	// ErrUnavailable indicates the position could not be determined.
	ErrUnavailable = errors.New("geo: position unavailable")
	// ErrTimeout indicates no fix arrived within the configured timeout.
	ErrTimeout = errors.New("geo: timed out waiting for position")
)

// Options mirror the knobs a position provider exposes.
type Options struct {
	// HighAccuracy requests the best available fix at a power cost.
	HighAccuracy bool
	// Timeout bounds how long a single fix may take. Zero means no bound.
	Timeout time.Duration
	// MaximumAge allows a cached fix no older than this. Zero forbids caching.
	MaximumAge time.Duration
}

// Sample is one position fix.
type Sample struct {
	Latitude  float64
	Longitude float64
	// Accuracy is the fix radius in meters.
	Accuracy float64
	// Time is when the fix was taken.
	Time time.Time
}

// Sampler produces position fixes.
type Sampler interface {
	// Current returns one fix, honoring opts.Timeout via ctx or internally.
	Current(ctx context.Context, opts Options) (Sample, error)

	// Watch streams fixes until cancel. Exactly one of the sample or error
	// channel closes the watch: after an error is delivered the watch is dead
	// and must be replaced.
	Watch(ctx context.Context, opts Options) (*Watch, error)
}

// Watch is a live stream of position fixes.
type Watch struct {
	// Samples carries fixes in arrival order.
	Samples <-chan Sample
	// Errs carries at most one terminal error.
	Errs <-chan error

	cancel   func()
	stopOnce sync.Once
}

// NewWatch wires a watch handle around provider-owned channels.
func NewWatch(samples <-chan Sample, errs <-chan error, cancel func()) *Watch {
	return &Watch{Samples: samples, Errs: errs, cancel: cancel}
}

// Stop ends the watch. Idempotent.
func (w *Watch) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
}

// FixedSampler serves a static sequence of fixes. It backs tests and
// single-machine demos where no real position source exists.
type FixedSampler struct {
	mu      sync.Mutex
	samples []Sample
	err     error
	next    int
	// Interval paces Watch emissions. Zero emits as fast as consumed.
	Interval time.Duration
}

// NewFixedSampler returns a sampler cycling through the given fixes.
func NewFixedSampler(samples ...Sample) *FixedSampler {
	return &FixedSampler{samples: samples}
}

// Fail makes every subsequent call return err.
func (f *FixedSampler) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Current implements Sampler.
func (f *FixedSampler) Current(ctx context.Context, opts Options) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	return f.take()
}

// Watch implements Sampler.
func (f *FixedSampler) Watch(ctx context.Context, opts Options) (*Watch, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	samples := make(chan Sample)
	errs := make(chan error, 1)

	go func() {
		defer close(samples)
		for {
			sample, err := f.take()
			if err != nil {
				select {
				case errs <- err:
				case <-watchCtx.Done():
				}
				return
			}

			select {
			case samples <- sample:
			case <-watchCtx.Done():
				return
			}

			if f.Interval > 0 {
				select {
				case <-time.After(f.Interval):
				case <-watchCtx.Done():
					return
				}
			}
		}
	}()

	return NewWatch(samples, errs, cancel), nil
}

func (f *FixedSampler) take() (Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return Sample{}, f.err
	}
	if len(f.samples) == 0 {
		return Sample{}, ErrUnavailable
	}

	sample := f.samples[f.next%len(f.samples)]
	f.next++
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}
	return sample, nil
}
