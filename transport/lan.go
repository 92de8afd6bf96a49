package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// dialTimeout bounds a TCP connect to a discovered peer.
	dialTimeout = 5 * time.Second
	// helloTimeout bounds the hello exchange after connect.
	helloTimeout = 5 * time.Second
)

// LANConfig controls the LAN mesh adapter.
type LANConfig struct {
	// PeerID uniquely identifies this node on the mesh.
	PeerID string
	// DisplayName is the mDNS instance name.
	DisplayName string
	// ListenAddress is the TCP listen address; ":0" picks a free port.
	ListenAddress string

	// Service and Domain override the mDNS service/domain.
	Service string
	Domain  string
	// RefreshInterval and ScanTimeout control background discovery.
	RefreshInterval time.Duration
	ScanTimeout     time.Duration

	// DisableDiscovery turns off mDNS; peers are added via AddPeer only.
	DisableDiscovery bool

	registerFn registerFunc
	browseFn   browseFunc
}

func (c LANConfig) validate() error {
	if c.PeerID == "" {
		return errors.New("transport: peer ID is required")
	}
	return nil
}

func (c LANConfig) service() string {
	if c.Service == "" {
		return defaultService
	}
	return c.Service
}

func (c LANConfig) domain() string {
	if c.Domain == "" {
		return defaultDomain
	}
	return c.Domain
}

func (c LANConfig) refreshInterval() time.Duration {
	if c.RefreshInterval <= 0 {
		return defaultRefreshInterval
	}
	return c.RefreshInterval
}

func (c LANConfig) scanTimeout() time.Duration {
	if c.ScanTimeout <= 0 {
		return defaultScanTimeout
	}
	return c.ScanTimeout
}

// LAN is a small LAN mesh implementing Adapter: peers find each other via
// mDNS, connect over TCP, and fan every publication out to every connection.
// Publications loop back to the local subscribers as well, so the engine
// observes the same self-echo it would from the real transport.
type LAN struct {
	cfg LANConfig

	listener  net.Listener
	announcer *zeroconf.Server

	mu      sync.RWMutex
	peers   map[string]*lanPeer
	subs    map[string]map[int]func([]byte)
	nextSub int

	deliver chan memoryDelivery

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type lanPeer struct {
	id      string
	conn    net.Conn
	inbound bool
	sendMu  sync.Mutex
}

// StartLAN starts the listener, mDNS announcement, and background discovery.
func StartLAN(cfg LANConfig) (*LAN, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	address := cfg.ListenAddress
	if address == "" {
		address = ":0"
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %q: %w", address, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &LAN{
		cfg:      cfg,
		listener: listener,
		peers:    make(map[string]*lanPeer),
		subs:     make(map[string]map[int]func([]byte)),
		deliver:  make(chan memoryDelivery, 256),
		ctx:      ctx,
		cancel:   cancel,
	}

	if !cfg.DisableDiscovery {
		port := listener.Addr().(*net.TCPAddr).Port
		announcer, err := announce(cfg, port)
		if err != nil {
			cancel()
			_ = listener.Close()
			return nil, fmt.Errorf("announce on mDNS: %w", err)
		}
		l.announcer = announcer

		l.wg.Add(1)
		go l.discoveryLoop()
	}

	l.wg.Add(2)
	go l.acceptLoop()
	go l.pump()

	return l, nil
}

// Addr returns the TCP listen address.
func (l *LAN) Addr() net.Addr {
	return l.listener.Addr()
}

// AddPeer dials a peer endpoint directly, bypassing discovery.
func (l *LAN) AddPeer(address string) error {
	return l.dial(address)
}

// Publish implements Adapter: best-effort fanout to every connected peer
// plus the local loopback.
func (l *LAN) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-l.ctx.Done():
		return errors.New("transport: mesh closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	framed, err := encodeFrame(publishFrame{
		Type:    frameTypePublish,
		From:    l.cfg.PeerID,
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		return err
	}

	l.mu.RLock()
	peers := make([]*lanPeer, 0, len(l.peers))
	for _, peer := range l.peers {
		peers = append(peers, peer)
	}
	l.mu.RUnlock()

	for _, peer := range peers {
		if err := peer.send(framed); err != nil {
			log.Printf("transport: send to peer %s failed: %v", peer.id, err)
			l.removePeer(peer)
		}
	}

	l.enqueue(memoryDelivery{topic: topic, payload: append([]byte(nil), payload...)})
	return nil
}

// Subscribe implements Adapter.
func (l *LAN) Subscribe(topic string, handler func(payload []byte)) (Subscription, error) {
	select {
	case <-l.ctx.Done():
		return nil, errors.New("transport: mesh closed")
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs[topic] == nil {
		l.subs[topic] = make(map[int]func([]byte))
	}
	id := l.nextSub
	l.nextSub++
	l.subs[topic][id] = handler
	return &lanSubscription{lan: l, topic: topic, id: id}, nil
}

// Status implements Adapter.
func (l *LAN) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	topics := make([]string, 0, len(l.subs))
	for topic := range l.subs {
		topics = append(topics, topic)
	}
	return Status{
		Connected:        l.ctx.Err() == nil,
		PeerCount:        len(l.peers),
		LocalPeerID:      l.cfg.PeerID,
		SubscribedTopics: topics,
	}
}

// Close tears down discovery, the listener, and all peer connections.
func (l *LAN) Close() error {
	l.closeOnce.Do(func() {
		l.cancel()
		if l.announcer != nil {
			l.announcer.Shutdown()
		}
		_ = l.listener.Close()

		l.mu.Lock()
		for _, peer := range l.peers {
			_ = peer.conn.Close()
		}
		l.peers = make(map[string]*lanPeer)
		l.mu.Unlock()

		l.wg.Wait()
	})
	return nil
}

func (l *LAN) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			log.Printf("transport: accept failed: %v", err)
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handleConn(conn, true)
		}()
	}
}

func (l *LAN) discoveryLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.refreshInterval())
	defer ticker.Stop()

	for {
		l.scanOnce()
		select {
		case <-ticker.C:
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *LAN) scanOnce() {
	peers, err := browsePeers(l.ctx, l.cfg)
	if err != nil {
		log.Printf("transport: mDNS scan failed: %v", err)
		return
	}

	for _, peer := range peers {
		if l.hasPeer(peer.peerID) {
			continue
		}
		address := net.JoinHostPort(peer.addresses[0], strconv.Itoa(peer.port))
		if err := l.dial(address); err != nil {
			log.Printf("transport: dial discovered peer %s at %s failed: %v",
				peer.peerID, address, err)
		}
	}
}

func (l *LAN) dial(address string) error {
	conn, err := net.DialTimeout("tcp", address, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial peer %q: %w", address, err)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.handleConn(conn, false)
	}()
	return nil
}

// handleConn runs the hello exchange and, on success, the read loop. The
// accepting side speaks second so both sides learn the counterpart identity
// before any publish frame flows.
func (l *LAN) handleConn(conn net.Conn, inbound bool) {
	keep := false
	defer func() {
		if !keep {
			_ = conn.Close()
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(helloTimeout))

	hello, err := encodeFrame(helloFrame{
		Type:        frameTypeHello,
		Version:     gossipVersion,
		PeerID:      l.cfg.PeerID,
		DisplayName: l.cfg.DisplayName,
	})
	if err != nil {
		log.Printf("transport: build hello failed: %v", err)
		return
	}

	var remote helloFrame
	if inbound {
		remote, err = readHello(conn)
		if err == nil {
			err = writeFrame(conn, hello)
		}
	} else {
		err = writeFrame(conn, hello)
		if err == nil {
			remote, err = readHello(conn)
		}
	}
	if err != nil {
		log.Printf("transport: hello exchange failed: %v", err)
		return
	}
	if remote.PeerID == "" || remote.PeerID == l.cfg.PeerID {
		return
	}

	_ = conn.SetDeadline(time.Time{})

	peer := &lanPeer{id: remote.PeerID, conn: conn, inbound: inbound}
	if !l.addPeer(peer) {
		return
	}
	keep = true

	l.readLoop(peer)
}

func readHello(conn net.Conn) (helloFrame, error) {
	payload, err := readFrame(conn)
	if err != nil {
		return helloFrame{}, err
	}
	kind, err := frameType(payload)
	if err != nil {
		return helloFrame{}, err
	}
	if kind != frameTypeHello {
		return helloFrame{}, fmt.Errorf("transport: expected hello, got %q", kind)
	}

	var hello helloFrame
	if err := decodeFrame(payload, &hello); err != nil {
		return helloFrame{}, err
	}
	if hello.Version != gossipVersion {
		return helloFrame{}, fmt.Errorf("%w: got %d want %d",
			errUnsupportedGossip, hello.Version, gossipVersion)
	}
	return hello, nil
}

// addPeer registers a connection, resolving simultaneous-dial duplicates:
// for any peer pair, the connection dialed by the smaller peer ID wins.
func (l *LAN) addPeer(peer *lanPeer) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.peers[peer.id]
	if !ok {
		l.peers[peer.id] = peer
		return true
	}

	keepNew := (peer.inbound && peer.id < l.cfg.PeerID) ||
		(!peer.inbound && l.cfg.PeerID < peer.id)
	if !keepNew {
		return false
	}

	_ = existing.conn.Close()
	l.peers[peer.id] = peer
	return true
}

func (l *LAN) hasPeer(peerID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.peers[peerID]
	return ok
}

func (l *LAN) removePeer(peer *lanPeer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.peers[peer.id]; ok && current == peer {
		delete(l.peers, peer.id)
	}
	_ = peer.conn.Close()
}

func (l *LAN) readLoop(peer *lanPeer) {
	defer l.removePeer(peer)

	for {
		payload, err := readFrame(peer.conn)
		if err != nil {
			select {
			case <-l.ctx.Done():
			default:
				log.Printf("transport: peer %s read failed: %v", peer.id, err)
			}
			return
		}

		kind, err := frameType(payload)
		if err != nil || kind != frameTypePublish {
			continue
		}

		var frame publishFrame
		if err := decodeFrame(payload, &frame); err != nil {
			log.Printf("transport: peer %s sent malformed publish: %v", peer.id, err)
			continue
		}
		l.enqueue(memoryDelivery{topic: frame.Topic, payload: frame.Payload})
	}
}

func (l *LAN) enqueue(d memoryDelivery) {
	select {
	case l.deliver <- d:
	case <-l.ctx.Done():
	}
}

func (l *LAN) pump() {
	defer l.wg.Done()

	for {
		select {
		case d := <-l.deliver:
			l.dispatch(d.topic, d.payload)
		case <-l.ctx.Done():
			return
		}
	}
}

func (l *LAN) dispatch(topic string, payload []byte) {
	l.mu.RLock()
	handlers := make([]func([]byte), 0, len(l.subs[topic]))
	for _, handler := range l.subs[topic] {
		handlers = append(handlers, handler)
	}
	l.mu.RUnlock()

	for _, handler := range handlers {
		handler(payload)
	}
}

func (p *lanPeer) send(framed []byte) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return writeFrame(p.conn, framed)
}

type lanSubscription struct {
	lan   *LAN
	topic string
	id    int
	once  sync.Once
}

// Cancel implements Subscription.
func (s *lanSubscription) Cancel() {
	s.once.Do(func() {
		s.lan.mu.Lock()
		defer s.lan.mu.Unlock()
		if handlers := s.lan.subs[s.topic]; handlers != nil {
			delete(handlers, s.id)
		}
	})
}
