package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"arc/geo"
	"arc/models"
	"arc/wire"
)

var (
	// initialFixOptions asks for the best fix for the first published point.
	initialFixOptions = geo.Options{HighAccuracy: true, Timeout: 15 * time.Second}
	// watchOptions is the standard continuous policy.
	watchOptions = geo.Options{Timeout: 15 * time.Second, MaximumAge: 10 * time.Second}
	// lenientWatchOptions is the degraded policy after a watch timeout.
	lenientWatchOptions = geo.Options{Timeout: 30 * time.Second, MaximumAge: 30 * time.Second}
)

// errStreamClosed marks a provider that closed its sample stream without
// reporting an error. The share treats it as terminal.
var errStreamClosed = errors.New("engine: position stream ended")

// liveShare owns one continuous location stream. The watch degrades once on
// timeout (a more lenient retry), and a second failure stops the share; the
// previous watch is always torn down before a replacement starts so a sender
// never feeds two streams at once.
type liveShare struct {
	engine *Engine

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

// ShareLocation publishes a single position fix. The point also lands in the
// chat timeline as a map link, so peers without the map open still see it.
func (e *Engine) ShareLocation(ctx context.Context) error {
	if e.cfg.Sampler == nil {
		return ErrNoSampler
	}
	if _, _, err := e.sendPreconditions(); err != nil {
		return err
	}

	sample, err := e.cfg.Sampler.Current(ctx, initialFixOptions)
	if err != nil {
		return fmt.Errorf("acquire position: %w", err)
	}

	if err := e.publishLocation(ctx, sample, false); err != nil {
		return err
	}
	link := fmt.Sprintf("📍 Location: https://www.openstreetmap.org/?q=%f,%f",
		sample.Latitude, sample.Longitude)
	return e.SendMessage(ctx, link)
}

// StartLiveShare begins continuous sharing. At most one live share runs per
// engine; the returned error is ErrAlreadySharing when one is active.
func (e *Engine) StartLiveShare(ctx context.Context) error {
	if e.cfg.Sampler == nil {
		return ErrNoSampler
	}
	if _, _, err := e.sendPreconditions(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.share != nil {
		e.mu.Unlock()
		return ErrAlreadySharing
	}
	shareCtx, cancel := context.WithCancel(e.ctx)
	share := &liveShare{
		engine: e,
		ctx:    shareCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.share = share
	e.mu.Unlock()

	// First point with the best accuracy available, before the watch takes
	// over with the cheaper continuous policy.
	sample, err := e.cfg.Sampler.Current(ctx, initialFixOptions)
	if err != nil {
		e.clearShare(share)
		cancel()
		close(share.done)
		return fmt.Errorf("acquire initial position: %w", err)
	}
	if err := e.publishLocation(ctx, sample, true); err != nil {
		e.clearShare(share)
		cancel()
		close(share.done)
		return err
	}

	e.wg.Add(1)
	go share.run()

	e.emit(EventLiveShareStarted, "live location sharing started")
	return nil
}

// StopLiveShare ends the running live share.
func (e *Engine) StopLiveShare() error {
	e.mu.Lock()
	share := e.share
	e.share = nil
	e.mu.Unlock()

	if share == nil {
		return ErrNotSharing
	}
	share.stop()
	e.emit(EventLiveShareStopped, "live location sharing stopped")
	return nil
}

// LiveSharing reports whether a continuous share is running.
func (e *Engine) LiveSharing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.share != nil
}

func (e *Engine) clearShare(share *liveShare) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.share == share {
		e.share = nil
	}
}

// publishLocation encrypts and publishes one fix, applying it to the local
// presence view optimistically. The echo of our own ping is then dropped.
func (e *Engine) publishLocation(ctx context.Context, sample geo.Sample, isLive bool) error {
	condition, nickname, err := e.sendPreconditions()
	if err != nil {
		return err
	}

	now := e.now()
	timestamp := now.UnixMilli()

	plaintext, err := wire.EncodeLocationPayload(wire.LocationPayload{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.Accuracy,
		IsLive:    isLive,
		Timestamp: timestamp,
	})
	if err != nil {
		return err
	}
	serialized, err := condition.Marshal()
	if err != nil {
		return fmt.Errorf("serialize condition: %w", err)
	}
	kit, err := e.cfg.Codec.Encrypt(ctx, plaintext, condition, e.cfg.Identity)
	if err != nil {
		return fmt.Errorf("encrypt location: %w", err)
	}

	payload, err := wire.Encode(wire.Envelope{
		Timestamp: timestamp,
		Sender:    e.cfg.Identity.Address,
		Nickname:  nickname,
		Content:   kit,
		Condition: serialized,
	})
	if err != nil {
		return err
	}

	key := models.MessageKey{Sender: e.cfg.Identity.Address, ID: timestamp}
	e.tracker.record(key, now)
	e.presence.observe(models.LocationUpdate{
		Sender:    e.cfg.Identity.Address,
		Nickname:  nickname,
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.Accuracy,
		Timestamp: timestamp,
		IsLive:    isLive,
	}, timestamp)
	e.emit(EventPresenceUpdated, "own position published")

	if err := e.cfg.Transport.Publish(ctx, wire.LocationTopic(e.cfg.ChannelDomain), payload); err != nil {
		e.emit(EventTransportError, "publish location: %v", err)
		return fmt.Errorf("publish location: %w", err)
	}
	return nil
}

func (s *liveShare) run() {
	defer s.engine.wg.Done()
	defer close(s.done)

	err := s.pump(watchOptions)
	if errors.Is(err, geo.ErrTimeout) {
		s.engine.emit(EventLiveShareDegraded,
			"position watch timed out, retrying with relaxed policy")
		err = s.pump(lenientWatchOptions)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("engine: live share ended: %v", err)
		s.engine.emit(EventLiveShareStopped, "live share ended: %v", err)
		s.engine.clearShare(s)
	}
}

// pump runs one watch until it errors or the share is stopped. The watch is
// always stopped before pump returns, so a degraded retry never overlaps
// the stream it replaces.
func (s *liveShare) pump(opts geo.Options) error {
	watch, err := s.engine.cfg.Sampler.Watch(s.ctx, opts)
	if err != nil {
		return err
	}
	defer watch.Stop()

	for {
		select {
		case sample, ok := <-watch.Samples:
			if !ok {
				if s.ctx.Err() != nil {
					return context.Canceled
				}
				return errStreamClosed
			}
			if err := s.engine.publishLocation(s.ctx, sample, true); err != nil {
				log.Printf("engine: live share publish failed: %v", err)
			}
		case err := <-watch.Errs:
			return err
		case <-s.ctx.Done():
			return context.Canceled
		}
	}
}

func (s *liveShare) stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}
