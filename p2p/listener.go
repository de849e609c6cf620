// Package p2p wires the relay peer to the wider network over libp2p
// gossipsub, publishing and receiving compressed relay blocks on a
// network-scoped topic.
package p2p

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Config holds P2P listener configuration.
type Config struct {
	Port           int
	BootstrapPeers []string
	PrivateKeyHex  string // hex-encoded ed25519 private key; generated if empty
	TopicPrefix    string // e.g. "testnet", "mainnet"
}

// Listener joins the relay-block gossipsub topic and exposes received
// messages on a channel, mirroring the shape of the client/subscribe API
// cmd/relaynode consumes: connect, subscribe, forward to a buffered channel.
type Listener struct {
	config *Config
	logger *slog.Logger

	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	blockCh chan []byte
	mu      sync.Mutex

	// sessionID correlates this listener's log lines across a process
	// lifetime; it has no protocol meaning and is never sent on the wire.
	sessionID uuid.UUID
}

// NewListener creates a new P2P listener. It does not connect until Start
// is called.
func NewListener(config *Config, logger *slog.Logger) (*Listener, error) {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "testnet"
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Listener{
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		blockCh:   make(chan []byte, 100),
		sessionID: uuid.New(),
	}, nil
}

// SessionID identifies this listener instance across its process lifetime,
// for correlating log lines from a single run.
func (l *Listener) SessionID() uuid.UUID {
	return l.sessionID
}

func blockTopicName(prefix string) string {
	return fmt.Sprintf("relaynode/block/1.0.0/%s", prefix)
}

// Start creates the libp2p host, joins the block-relay topic, and begins
// forwarding published messages to SubscribeBlocks' channel.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info("p2p listener starting", "session", l.sessionID, "port", l.config.Port, "network", l.config.TopicPrefix)

	privKey, err := l.loadOrGenerateKey()
	if err != nil {
		return err
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", l.config.Port)),
	)
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}
	l.host = h

	ps, err := pubsub.NewGossipSub(l.ctx, h)
	if err != nil {
		return fmt.Errorf("failed to create gossipsub router: %w", err)
	}
	l.ps = ps

	topicName := blockTopicName(l.config.TopicPrefix)
	topic, err := ps.Join(topicName)
	if err != nil {
		return fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}
	l.topic = topic

	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topicName, err)
	}
	l.sub = sub

	if err := l.connectBootstrapPeers(); err != nil {
		l.logger.Warn("failed to connect some bootstrap peers", "error", err)
	}

	go l.forwardMessages()

	l.logger.Info("p2p listener started", "peerID", h.ID().String(), "topic", topicName)

	return nil
}

func (l *Listener) loadOrGenerateKey() (crypto.PrivKey, error) {
	if l.config.PrivateKeyHex == "" {
		priv, _, err := crypto.GenerateEd25519Key(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate private key: %w", err)
		}
		return priv, nil
	}

	raw, err := hex.DecodeString(l.config.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	priv, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal private key: %w", err)
	}
	return priv, nil
}

func (l *Listener) connectBootstrapPeers() error {
	var lastErr error
	for _, addr := range l.config.BootstrapPeers {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			lastErr = fmt.Errorf("invalid bootstrap addr %s: %w", addr, err)
			l.logger.Warn("skipping invalid bootstrap peer", "addr", addr, "error", err)
			continue
		}
		if err := l.host.Connect(l.ctx, *info); err != nil {
			lastErr = fmt.Errorf("failed to connect to %s: %w", addr, err)
			l.logger.Warn("failed to connect to bootstrap peer", "addr", addr, "error", err)
			continue
		}
	}
	return lastErr
}

// forwardMessages reads gossipsub messages off the subscription and pushes
// them onto blockCh, dropping messages if the consumer falls behind.
func (l *Listener) forwardMessages() {
	selfID := l.host.ID()
	for {
		msg, err := l.sub.Next(l.ctx)
		if err != nil {
			l.logger.Warn("subscription closed", "error", err)
			return
		}
		if msg.ReceivedFrom == selfID {
			continue
		}

		select {
		case l.blockCh <- msg.Data:
		default:
			l.logger.Warn("block channel full, dropping message", "from", msg.ReceivedFrom.String(), "size", len(msg.Data))
		}
	}
}

// SubscribeBlocks returns a channel of raw relay-block payloads received
// from the network.
func (l *Listener) SubscribeBlocks() <-chan []byte {
	return l.blockCh
}

// Publish broadcasts a compressed relay block to the topic.
func (l *Listener) Publish(ctx context.Context, data []byte) error {
	l.mu.Lock()
	topic := l.topic
	l.mu.Unlock()

	if topic == nil {
		return fmt.Errorf("listener not started")
	}
	if err := topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("failed to publish relay block: %w", err)
	}
	return nil
}

// Stop shuts down the P2P listener.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancel()

	if l.sub != nil {
		l.sub.Cancel()
	}
	if l.topic != nil {
		l.topic.Close()
	}
	if l.host != nil {
		return l.host.Close()
	}
	return nil
}

// PeerCount returns the number of peers connected to the libp2p host.
func (l *Listener) PeerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.host == nil {
		return 0
	}
	return len(l.host.Network().Peers())
}

// GetPeers returns the IDs of all connected peers.
func (l *Listener) GetPeers() []peer.ID {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.host == nil {
		return nil
	}
	return l.host.Network().Peers()
}
