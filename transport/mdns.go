package transport

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// defaultService is the mDNS service name without domain suffix.
	defaultService = "_arcchat._tcp"
	// defaultDomain is the mDNS domain.
	defaultDomain = "local."
	// defaultRefreshInterval is the background peer discovery interval.
	defaultRefreshInterval = 10 * time.Second
	// defaultScanTimeout bounds each discovery scan.
	defaultScanTimeout = 3 * time.Second
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// discoveredPeer is one LAN endpoint found via mDNS.
type discoveredPeer struct {
	peerID    string
	addresses []string
	port      int
}

// announce registers the local node on mDNS and returns the server handle.
func announce(cfg LANConfig, port int) (*zeroconf.Server, error) {
	register := cfg.registerFn
	if register == nil {
		register = zeroconf.Register
	}

	txt := []string{
		"peer_id=" + cfg.PeerID,
		"version=" + strconv.Itoa(gossipVersion),
	}
	return register(cfg.DisplayName, cfg.service(), cfg.domain(), port, txt, nil)
}

// browsePeers performs one bounded mDNS scan and returns foreign peers.
func browsePeers(ctx context.Context, cfg LANConfig) ([]discoveredPeer, error) {
	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		browse = resolver.Browse
	}

	scanCtx, cancel := context.WithTimeout(ctx, cfg.scanTimeout())
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := browse(scanCtx, cfg.service(), cfg.domain(), entries); err != nil {
		return nil, err
	}

	var peers []discoveredPeer
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return peers, nil
			}
			peer, ok := entryToPeer(entry)
			if !ok || peer.peerID == cfg.PeerID {
				continue
			}
			peers = append(peers, peer)
		case <-scanCtx.Done():
			return peers, nil
		}
	}
}

func entryToPeer(entry *zeroconf.ServiceEntry) (discoveredPeer, bool) {
	if entry == nil || entry.Port <= 0 {
		return discoveredPeer{}, false
	}

	peer := discoveredPeer{port: entry.Port}
	for _, record := range entry.Text {
		if value, ok := strings.CutPrefix(record, "peer_id="); ok {
			peer.peerID = value
		}
	}
	if peer.peerID == "" {
		return discoveredPeer{}, false
	}

	for _, ip := range entry.AddrIPv4 {
		peer.addresses = append(peer.addresses, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		peer.addresses = append(peer.addresses, ip.String())
	}
	if len(peer.addresses) == 0 {
		return discoveredPeer{}, false
	}
	return peer, true
}
