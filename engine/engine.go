// Package engine is the client-side message synchronization core: it
// publishes locally-authored encrypted messages, suppresses their transport
// echo, pipelines foreign envelopes through condition-gated decryption with
// retryable per-message state, and merges the results into an ordered
// timeline and a live presence view.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"arc/access"
	"arc/geo"
	"arc/models"
	"arc/transport"
	"arc/wire"
)

var (
	// ErrNoIdentity indicates a send attempt without a connected identity.
	ErrNoIdentity = errors.New("engine: no identity connected")
	// ErrNoCondition indicates a send attempt before an access condition
	// was chosen.
	ErrNoCondition = errors.New("engine: no access condition set")
	// ErrNotStarted indicates an operation on an engine before Start.
	ErrNotStarted = errors.New("engine: not started")
	// ErrClosed indicates an operation on a closed engine.
	ErrClosed = errors.New("engine: closed")
	// ErrNoSampler indicates a location operation without a position source.
	ErrNoSampler = errors.New("engine: no location sampler configured")
	// ErrAlreadySharing indicates a live share start while one is running.
	ErrAlreadySharing = errors.New("engine: live share already running")
	// ErrNotSharing indicates a live share stop with none running.
	ErrNotSharing = errors.New("engine: no live share running")
)

// Config wires an engine instance. Transport, Codec, and ChannelDomain are
// required; Sampler is required only for the location operations.
type Config struct {
	Transport transport.Adapter
	Codec     access.Codec
	Identity  access.IdentityContext
	Nickname  string
	// ChannelDomain derives the chat and location topic names.
	ChannelDomain string
	Sampler       geo.Sampler
	// Events receives a durable copy of the event stream. Optional.
	Events EventLogger
	// OutboundRetention bounds self-echo records; zero means the default.
	OutboundRetention time.Duration

	now func() time.Time
}

func (c Config) validate() error {
	if c.Transport == nil {
		return errors.New("engine: transport adapter is required")
	}
	if c.Codec == nil {
		return errors.New("engine: access codec is required")
	}
	if c.ChannelDomain == "" {
		return errors.New("engine: channel domain is required")
	}
	return nil
}

// intake is one raw transport delivery awaiting classification.
type intake struct {
	payload  []byte
	location bool
}

// Engine is one session's synchronization core. All shared state (timeline,
// presence, outbound records) is owned here and mutated only through the
// engine's own goroutines and locked components.
type Engine struct {
	cfg Config

	tracker  *outboundTracker
	timeline *timeline
	presence *presenceMap

	in     chan intake
	events chan Event

	mu        sync.Mutex
	condition *access.Condition
	nickname  string
	subs      []transport.Subscription
	started   bool
	share     *liveShare

	inflightMu sync.Mutex
	inflight   map[models.MessageKey]struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds an engine; Start must be called before it processes anything.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:      cfg,
		tracker:  newOutboundTracker(cfg.OutboundRetention),
		timeline: newTimeline(),
		presence: newPresenceMap(),
		in:       make(chan intake, 256),
		events:   make(chan Event, 128),
		nickname: cfg.Nickname,
		inflight: make(map[models.MessageKey]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start subscribes to the channel topics and launches the intake consumer.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New("engine: already started")
	}
	select {
	case <-e.ctx.Done():
		return ErrClosed
	default:
	}

	chatSub, err := e.cfg.Transport.Subscribe(wire.ChatTopic(e.cfg.ChannelDomain), func(payload []byte) {
		e.enqueue(intake{payload: payload})
	})
	if err != nil {
		return fmt.Errorf("subscribe chat topic: %w", err)
	}
	locationSub, err := e.cfg.Transport.Subscribe(wire.LocationTopic(e.cfg.ChannelDomain), func(payload []byte) {
		e.enqueue(intake{payload: payload, location: true})
	})
	if err != nil {
		chatSub.Cancel()
		return fmt.Errorf("subscribe location topic: %w", err)
	}
	e.subs = []transport.Subscription{chatSub, locationSub}

	e.wg.Add(2)
	go e.consume()
	go e.pruneLoop()

	e.started = true
	return nil
}

// Close stops the intake loop, subscriptions, and any live share.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		subs := e.subs
		e.subs = nil
		share := e.share
		e.share = nil
		e.mu.Unlock()

		if share != nil {
			share.stop()
		}
		for _, sub := range subs {
			sub.Cancel()
		}
		e.cancel()
		e.wg.Wait()
	})
	return nil
}

// Events exposes the notification stream. Events are dropped, not queued,
// when the consumer lags.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Timeline returns every message row sorted ascending by id.
func (e *Engine) Timeline() []models.Message {
	return e.timeline.snapshot()
}

// VisibleTimeline returns the rows eligible for display: self-authored rows
// plus access-gated foreign rows.
func (e *Engine) VisibleTimeline() []models.Message {
	return e.timeline.visible()
}

// Locations returns the latest known position per sender.
func (e *Engine) Locations() []models.LocationUpdate {
	return e.presence.locations()
}

// ActiveUsers returns the presence projection.
func (e *Engine) ActiveUsers() []models.ActiveUser {
	return e.presence.activeUsers()
}

// Status reports transport connectivity.
func (e *Engine) Status() transport.Status {
	return e.cfg.Transport.Status()
}

// SetNickname changes the display name attached to future publications.
func (e *Engine) SetNickname(nickname string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nickname = nickname
}

// SetCondition chooses the access condition attached to future publications.
func (e *Engine) SetCondition(condition access.Condition) error {
	if err := condition.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.condition = &condition
	return nil
}

// ConditionDescription renders the current condition for the UI, or "".
func (e *Engine) ConditionDescription() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.condition == nil {
		return ""
	}
	return e.condition.Describe()
}

// SendMessage encrypts text under the current condition and publishes it.
// The local row appears immediately with the plaintext; delivered flips when
// the transport echoes the publication back.
func (e *Engine) SendMessage(ctx context.Context, text string) error {
	condition, nickname, err := e.sendPreconditions()
	if err != nil {
		return err
	}

	now := e.now()
	timestamp := now.UnixMilli()

	serialized, err := condition.Marshal()
	if err != nil {
		return fmt.Errorf("serialize condition: %w", err)
	}
	kit, err := e.cfg.Codec.Encrypt(ctx, []byte(text), condition, e.cfg.Identity)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
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

	// Record before publishing so a same-instant echo already classifies
	// as self, then show the row optimistically.
	e.tracker.record(key, now)
	e.timeline.upsert(models.Message{
		ID:             timestamp,
		Sender:         e.cfg.Identity.Address,
		SenderNickname: nickname,
		Content:        text,
		Kit:            kit,
		Condition:      serialized,
		State:          models.DecryptionSuccess,
		Mine:           true,
	})
	e.emit(EventTimelineUpdated, "sent message %d", timestamp)

	if err := e.cfg.Transport.Publish(ctx, wire.ChatTopic(e.cfg.ChannelDomain), payload); err != nil {
		e.emit(EventTransportError, "publish message %d: %v", timestamp, err)
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// RetryDecryption re-attempts decryption of a failed row. A no-op for rows
// in any other state, and at most one attempt per row is in flight.
func (e *Engine) RetryDecryption(id int64) error {
	for _, key := range e.timeline.find(id) {
		e.retryKey(key)
	}
	return nil
}

func (e *Engine) retryKey(key models.MessageKey) {
	if !e.markInflight(key) {
		return
	}

	row, ok := e.timeline.setPending(key)
	if !ok {
		e.clearInflight(key)
		return
	}
	e.emit(EventTimelineUpdated, "retrying message %d from %s", key.ID, key.Sender)

	e.wg.Add(1)
	go e.decryptChat(row)
}

func (e *Engine) sendPreconditions() (access.Condition, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Identity.Address == "" {
		return access.Condition{}, "", ErrNoIdentity
	}
	if e.condition == nil {
		return access.Condition{}, "", ErrNoCondition
	}
	if !e.started {
		return access.Condition{}, "", ErrNotStarted
	}
	return *e.condition, e.nickname, nil
}

func (e *Engine) enqueue(item intake) {
	select {
	case e.in <- item:
	case <-e.ctx.Done():
	}
}

// consume is the single intake drain: it decodes, classifies self vs
// foreign, and fans foreign envelopes out to decrypt tasks. Classification
// happens before any decrypt attempt.
func (e *Engine) consume() {
	defer e.wg.Done()

	for {
		select {
		case item := <-e.in:
			e.handleInbound(item)
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) handleInbound(item intake) {
	envelope, err := wire.Decode(item.payload)
	if err != nil {
		log.Printf("engine: dropping malformed envelope: %v", err)
		return
	}

	key := models.MessageKey{Sender: envelope.Sender, ID: envelope.Timestamp}
	if e.tracker.isSelf(key) {
		if item.location {
			// Our own position was applied optimistically at share time.
			return
		}
		if e.timeline.markDelivered(key) {
			e.emit(EventMessageDelivered, "message %d confirmed by network", key.ID)
		}
		return
	}

	if item.location {
		e.wg.Add(1)
		go e.decryptLocation(envelope)
		return
	}

	msg := models.Message{
		ID:             envelope.Timestamp,
		Sender:         envelope.Sender,
		SenderNickname: envelope.Nickname,
		Kit:            envelope.Content,
		Condition:      envelope.Condition,
		State:          models.DecryptionPending,
	}
	if envelope.Condition == "" {
		// Foreign cleartext: record it resolved, the visibility filter
		// keeps it out of the rendered timeline.
		msg.Content = string(envelope.Content)
		msg.State = models.DecryptionSuccess
		e.timeline.upsert(msg)
		return
	}

	if e.timeline.resolved(msg.Key()) {
		// Duplicate delivery of a message that already decrypted.
		return
	}
	if !e.markInflight(msg.Key()) {
		// A decrypt for this key is already running (duplicate delivery).
		return
	}
	e.timeline.upsert(msg)
	e.emit(EventTimelineUpdated, "received message %d from %s", msg.ID, msg.Sender)

	e.wg.Add(1)
	go e.decryptChat(msg)
}

// decryptChat resolves one pending chat row. Failure is a row state, never
// an escalated error.
func (e *Engine) decryptChat(msg models.Message) {
	defer e.wg.Done()
	key := msg.Key()
	defer e.clearInflight(key)

	plaintext, err := e.cfg.Codec.Decrypt(e.ctx, msg.Kit, e.cfg.Identity)
	if err != nil {
		e.timeline.setFailed(key)
		e.emit(EventDecryptFailed, "message %d from %s: %v", key.ID, key.Sender, err)
		return
	}

	e.timeline.setDecrypted(key, string(plaintext))
	e.emit(EventDecryptSucceeded, "message %d from %s", key.ID, key.Sender)
}

// decryptLocation resolves one location envelope into the presence map.
// Location pings are ephemeral: a failed decrypt is logged and dropped
// rather than kept for retry.
func (e *Engine) decryptLocation(envelope wire.Envelope) {
	defer e.wg.Done()

	plaintext, err := e.cfg.Codec.Decrypt(e.ctx, envelope.Content, e.cfg.Identity)
	if err != nil {
		log.Printf("engine: location ping from %s undecryptable: %v", envelope.Sender, err)
		return
	}
	payload, err := wire.DecodeLocationPayload(plaintext)
	if err != nil {
		log.Printf("engine: location ping from %s malformed: %v", envelope.Sender, err)
		return
	}

	e.presence.observe(models.LocationUpdate{
		Sender:    envelope.Sender,
		Nickname:  envelope.Nickname,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Accuracy:  payload.Accuracy,
		Timestamp: payload.Timestamp,
		IsLive:    payload.IsLive,
	}, e.now().UnixMilli())
	e.emit(EventPresenceUpdated, "position from %s", envelope.Sender)
}

func (e *Engine) pruneLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tracker.prune(e.now())
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *Engine) markInflight(key models.MessageKey) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	if _, ok := e.inflight[key]; ok {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Engine) clearInflight(key models.MessageKey) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	delete(e.inflight, key)
}

func (e *Engine) now() time.Time {
	return e.cfg.now()
}
